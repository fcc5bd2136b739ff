package http

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"quizmaster-service/internal/app"
)

// Cache stores rendered report payloads keyed by string. The Redis and
// in-memory implementations both satisfy it.
type Cache interface {
	GetOrLoad(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error)
	Invalidate(ctx context.Context, keys ...string)
}

// Server bundles the HTTP surface over the application services.
type Server struct {
	auth     *app.AuthService
	catalog  *app.CatalogService
	attempts *app.AttemptService
	stats    *app.StatsService
	exports  *app.ExportService
	hub      *app.LeaderboardHub
	tokens   *TokenIssuer
	cache    Cache
	validate *validator.Validate
}

func NewServer(
	auth *app.AuthService,
	catalog *app.CatalogService,
	attempts *app.AttemptService,
	stats *app.StatsService,
	exports *app.ExportService,
	hub *app.LeaderboardHub,
	tokens *TokenIssuer,
	cache Cache,
) *Server {
	return &Server{
		auth:     auth,
		catalog:  catalog,
		attempts: attempts,
		stats:    stats,
		exports:  exports,
		hub:      hub,
		tokens:   tokens,
		cache:    cache,
		validate: validator.New(),
	}
}

// Routes wires every endpoint. Mutating catalog routes and admin reports
// require the admin role; everything else past login requires a valid token.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)

	// catalog, admin-only writes
	mux.Handle("POST /api/subjects", s.admin(s.handleCreateSubject))
	mux.Handle("PUT /api/subjects/{id}", s.admin(s.handleUpdateSubject))
	mux.Handle("DELETE /api/subjects/{id}", s.admin(s.handleDeleteSubject))
	mux.Handle("GET /api/subjects", s.authed(s.handleListSubjects))

	mux.Handle("POST /api/chapters", s.admin(s.handleCreateChapter))
	mux.Handle("PUT /api/chapters/{id}", s.admin(s.handleUpdateChapter))
	mux.Handle("DELETE /api/chapters/{id}", s.admin(s.handleDeleteChapter))
	mux.Handle("GET /api/chapters", s.authed(s.handleListChapters))

	mux.Handle("POST /api/quizzes", s.admin(s.handleCreateQuiz))
	mux.Handle("PUT /api/quizzes/{id}", s.admin(s.handleUpdateQuiz))
	mux.Handle("DELETE /api/quizzes/{id}", s.admin(s.handleDeleteQuiz))
	mux.Handle("GET /api/quizzes", s.authed(s.handleListQuizzes))
	mux.Handle("GET /api/quizzes/upcoming", s.authed(s.handleUpcomingQuizzes))
	mux.Handle("GET /api/quizzes/{id}", s.authed(s.handleGetQuiz))
	mux.Handle("GET /api/quizzes/{id}/questions", s.authed(s.handleQuizQuestions))

	mux.Handle("POST /api/questions", s.admin(s.handleAddQuestion))
	mux.Handle("PUT /api/questions/{id}", s.admin(s.handleUpdateQuestion))
	mux.Handle("DELETE /api/questions/{id}", s.admin(s.handleDeleteQuestion))

	// attempts
	mux.Handle("POST /api/quizzes/{id}/attempts", s.authed(s.handleStartAttempt))
	mux.Handle("POST /api/attempts/{id}/submit", s.authed(s.handleSubmitAttempt))
	mux.Handle("GET /api/attempts/{id}", s.authed(s.handleAttemptResult))

	// reporting
	mux.Handle("GET /api/quizzes/{id}/leaderboard", s.authed(s.handleLeaderboard))
	mux.Handle("GET /api/users/me/attempts", s.authed(s.handleUserAttempts))
	mux.Handle("GET /api/users/me/scores", s.authed(s.handleFilterScores))
	mux.Handle("GET /api/users/me/summary", s.authed(s.handleUserSummary))
	mux.Handle("GET /api/users/me/export", s.authed(s.handleUserExport))
	mux.Handle("GET /api/search", s.authed(s.handleSearch))

	// admin reporting
	mux.Handle("GET /api/admin/stats/site", s.admin(s.handleSiteStats))
	mux.Handle("GET /api/admin/stats/top-quizzes", s.admin(s.handleTopQuizzes))
	mux.Handle("GET /api/admin/stats/subject-averages", s.admin(s.handleSubjectAverages))
	mux.Handle("GET /api/admin/users", s.admin(s.handleSearchUsers))
	mux.Handle("GET /api/admin/export", s.admin(s.handleAdminExport))
	mux.Handle("POST /api/admin/export/email", s.admin(s.handleAdminExportEmail))

	mux.Handle("GET /ws/leaderboard", s.authed(s.handleLeaderboardWS))

	return mux
}
