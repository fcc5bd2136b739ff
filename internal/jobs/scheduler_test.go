package jobs

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/infra/memory"
	"quizmaster-service/internal/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []string // "to|subject|body"
}

func (m *recordingMailer) Send(_ context.Context, toEmail, _ string, subject, htmlBody string, _ ...mail.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, toEmail+"|"+subject+"|"+htmlBody)
	return nil
}

func seed(t *testing.T) (*memory.Store, *domain.User, int64) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	user := &domain.User{Email: "alice@example.com", FullName: "Alice", Role: domain.RoleUser}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	admin := &domain.User{Email: "admin@example.com", FullName: "Admin", Role: domain.RoleAdmin}
	if err := store.CreateUser(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}

	subject := &domain.Subject{Name: "Mathematics", Code: "MATH"}
	if err := store.CreateSubject(ctx, subject); err != nil {
		t.Fatalf("create subject: %v", err)
	}
	quiz := &domain.Quiz{
		Title:     "Fresh Quiz",
		SubjectID: subject.ID,
		StartTime: time.Now().UTC(),
		EndTime:   time.Now().UTC().Add(24 * time.Hour),
	}
	if err := store.CreateQuiz(ctx, quiz, nil); err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return store, user, quiz.ID
}

func TestSendRemindersListsNewQuizzes(t *testing.T) {
	store, _, _ := seed(t)
	mailer := &recordingMailer{}
	s := NewScheduler(store, app.NewStatsService(store), mailer)

	if err := s.SendReminders(context.Background()); err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one reminder (admin excluded), got %d", len(mailer.sent))
	}
	if !strings.HasPrefix(mailer.sent[0], "alice@example.com|") || !strings.Contains(mailer.sent[0], "Fresh Quiz") {
		t.Fatalf("unexpected reminder %q", mailer.sent[0])
	}
}

func TestSendRemindersNoNewQuizzes(t *testing.T) {
	store, _, _ := seed(t)
	mailer := &recordingMailer{}
	s := NewScheduler(store, app.NewStatsService(store), mailer)
	// Pretend the job runs far in the future, past the 24h lookback.
	s.now = func() time.Time { return time.Now().Add(72 * time.Hour) }

	if err := s.SendReminders(context.Background()); err != nil {
		t.Fatalf("send reminders: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no reminders, got %d", len(mailer.sent))
	}
}

func TestSendMonthlyReports(t *testing.T) {
	ctx := context.Background()
	store, user, quizID := seed(t)
	mailer := &recordingMailer{}
	s := NewScheduler(store, app.NewStatsService(store), mailer)

	attempt, _, err := store.InsertIfAbsent(ctx, user.ID, quizID)
	if err != nil {
		t.Fatalf("insert attempt: %v", err)
	}
	if err := store.FinishAttempt(ctx, attempt.ID, 8, time.Now()); err != nil {
		t.Fatalf("finish attempt: %v", err)
	}

	if err := s.SendMonthlyReports(ctx); err != nil {
		t.Fatalf("send reports: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one report, got %d", len(mailer.sent))
	}
	report := mailer.sent[0]
	if !strings.Contains(report, "Fresh Quiz") || !strings.Contains(report, "8.00") {
		t.Fatalf("report missing quiz or score: %q", report)
	}
	// The only attempt ranks first.
	if !strings.Contains(report, "<td>1</td>") {
		t.Fatalf("report missing rank: %q", report)
	}
}

func TestSendMonthlyReportsSkipsInactiveUsers(t *testing.T) {
	store, _, _ := seed(t)
	mailer := &recordingMailer{}
	s := NewScheduler(store, app.NewStatsService(store), mailer)

	if err := s.SendMonthlyReports(context.Background()); err != nil {
		t.Fatalf("send reports: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no reports for users without attempts, got %d", len(mailer.sent))
	}
}
