package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/memory"
	"quizmaster-service/internal/mail"
	transport "quizmaster-service/internal/transport/http"
)

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	tokens *transport.TokenIssuer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	stats := app.NewStatsService(store)
	hub := app.NewLeaderboardHub(stats)
	tokens := transport.NewTokenIssuer("test-secret", time.Hour)

	api := transport.NewServer(
		app.NewAuthService(store),
		app.NewCatalogService(store, store),
		app.NewAttemptService(store, store),
		stats,
		app.NewExportService(store, store, mail.Nop{}),
		hub,
		tokens,
		memory.NewCache(time.Minute),
	)
	server := httptest.NewServer(api.Routes())
	t.Cleanup(server.Close)
	return &testEnv{server: server, store: store, tokens: tokens}
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	admin := &domain.User{Email: "admin@example.com", FullName: "Admin", Role: domain.RoleAdmin}
	if err := e.store.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	token, err := e.tokens.Mint(admin)
	if err != nil {
		t.Fatalf("mint admin token: %v", err)
	}
	return token
}

// do issues a JSON request and decodes the response body into a map.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRegisterLoginAndAttemptFlow(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)

	// Register and log in a regular user.
	status, _ := env.do(t, "POST", "/api/register", "", map[string]any{
		"email": "alice@example.com", "password": "correct horse", "fullName": "Alice",
	})
	if status != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", status)
	}
	status, login := env.do(t, "POST", "/api/login", "", map[string]any{
		"email": "alice@example.com", "password": "correct horse",
	})
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", status)
	}
	userToken, _ := login["token"].(string)
	if userToken == "" {
		t.Fatalf("login returned no token: %v", login)
	}

	// Admin authors a subject, an open quiz, and one MCQ.
	status, subject := env.do(t, "POST", "/api/subjects", adminToken, map[string]any{
		"name": "Mathematics", "code": "MATH",
	})
	if status != http.StatusCreated {
		t.Fatalf("create subject: expected 201, got %d (%v)", status, subject)
	}
	now := time.Now().UTC()
	status, quiz := env.do(t, "POST", "/api/quizzes", adminToken, map[string]any{
		"title":     "Algebra Basics",
		"subjectId": subject["id"],
		"startTime": now.Add(-time.Hour).Format("2006-01-02 15:04:05"),
		"endTime":   now.Add(time.Hour).Format("2006-01-02 15:04:05"),
	})
	if status != http.StatusCreated {
		t.Fatalf("create quiz: expected 201, got %d (%v)", status, quiz)
	}
	quizID := int64(quiz["id"].(float64))

	status, question := env.do(t, "POST", "/api/questions", adminToken, map[string]any{
		"quizId": quizID, "text": "What is 2 + 2?", "marks": 4, "negativeMarks": 1,
		"options": []string{"3", "4", "5"}, "correctOptions": []int{1},
	})
	if status != http.StatusCreated {
		t.Fatalf("create question: expected 201, got %d (%v)", status, question)
	}
	questionID := int64(question["id"].(float64))
	correct := question["correctOptions"].([]any)
	correctOption := int64(correct[0].(float64))

	// User starts the attempt; a repeat start returns the same attempt.
	status, started := env.do(t, "POST", fmt.Sprintf("/api/quizzes/%d/attempts", quizID), userToken, nil)
	if status != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d (%v)", status, started)
	}
	attemptID := int64(started["attemptId"].(float64))

	status, repeated := env.do(t, "POST", fmt.Sprintf("/api/quizzes/%d/attempts", quizID), userToken, nil)
	if status != http.StatusOK || repeated["alreadyStarted"] != true {
		t.Fatalf("repeat start: expected 200 alreadyStarted, got %d (%v)", status, repeated)
	}

	// Submit the correct answer.
	status, result := env.do(t, "POST", fmt.Sprintf("/api/attempts/%d/submit", attemptID), userToken, map[string]any{
		"answers": map[string][]int64{fmt.Sprintf("%d", questionID): {correctOption}},
	})
	if status != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d (%v)", status, result)
	}
	if result["score"].(float64) != 4 || result["totalMarks"].(float64) != 4 {
		t.Fatalf("unexpected result %v", result)
	}

	// A second submit conflicts.
	status, _ = env.do(t, "POST", fmt.Sprintf("/api/attempts/%d/submit", attemptID), userToken, map[string]any{
		"answers": map[string][]int64{},
	})
	if status != http.StatusConflict {
		t.Fatalf("resubmit: expected 409, got %d", status)
	}

	// Leaderboard shows the scored attempt.
	status, lb := env.do(t, "GET", fmt.Sprintf("/api/quizzes/%d/leaderboard", quizID), userToken, nil)
	if status != http.StatusOK {
		t.Fatalf("leaderboard: expected 200, got %d", status)
	}
	entries := lb["entries"].([]any)
	if len(entries) != 1 {
		t.Fatalf("expected one leaderboard entry, got %v", entries)
	}
	first := entries[0].(map[string]any)
	if first["score"].(float64) != 4 || first["rank"].(float64) != 1 {
		t.Fatalf("unexpected entry %v", first)
	}
}

func TestStartOutsideWindowForbidden(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)

	status, subject := env.do(t, "POST", "/api/subjects", adminToken, map[string]any{"name": "S", "code": "C"})
	if status != http.StatusCreated {
		t.Fatalf("create subject: %d", status)
	}
	now := time.Now().UTC()
	status, quiz := env.do(t, "POST", "/api/quizzes", adminToken, map[string]any{
		"title":     "Closed",
		"subjectId": subject["id"],
		"startTime": now.Add(time.Hour).Format("2006-01-02 15:04:05"),
		"endTime":   now.Add(2 * time.Hour).Format("2006-01-02 15:04:05"),
	})
	if status != http.StatusCreated {
		t.Fatalf("create quiz: %d", status)
	}

	status, _ = env.do(t, "POST", fmt.Sprintf("/api/quizzes/%v/attempts", int64(quiz["id"].(float64))), adminToken, nil)
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 outside window, got %d", status)
	}
}

func TestAuthAndRoleGates(t *testing.T) {
	env := newTestEnv(t)

	// No token.
	status, _ := env.do(t, "GET", "/api/subjects", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	// Garbage token.
	status, _ = env.do(t, "GET", "/api/subjects", "not-a-token", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for invalid token, got %d", status)
	}

	// User token on an admin route.
	env.do(t, "POST", "/api/register", "", map[string]any{
		"email": "bob@example.com", "password": "longenough", "fullName": "Bob",
	})
	_, login := env.do(t, "POST", "/api/login", "", map[string]any{
		"email": "bob@example.com", "password": "longenough",
	})
	userToken := login["token"].(string)

	status, _ = env.do(t, "POST", "/api/subjects", userToken, map[string]any{"name": "S", "code": "C"})
	if status != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", status)
	}
}

func TestLeaderboardWebSocket(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.adminToken(t)

	status, subject := env.do(t, "POST", "/api/subjects", adminToken, map[string]any{"name": "S", "code": "C"})
	if status != http.StatusCreated {
		t.Fatalf("create subject: %d", status)
	}
	now := time.Now().UTC()
	status, quiz := env.do(t, "POST", "/api/quizzes", adminToken, map[string]any{
		"title":     "Live",
		"subjectId": subject["id"],
		"startTime": now.Add(-time.Hour).Format("2006-01-02 15:04:05"),
		"endTime":   now.Add(time.Hour).Format("2006-01-02 15:04:05"),
	})
	if status != http.StatusCreated {
		t.Fatalf("create quiz: %d", status)
	}
	quizID := int64(quiz["id"].(float64))

	url := "ws" + env.server.URL[len("http"):] + fmt.Sprintf("/ws/leaderboard?quiz_id=%d&token=%s", quizID, adminToken)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard frame, got %q", msg.Type)
	}
	if msg.Payload["quizId"].(float64) != float64(quizID) {
		t.Fatalf("unexpected payload %v", msg.Payload)
	}
}
