package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizmaster-service/internal/domain"
)

// ReportStore is the read-only side of persistence: flat batch loads over
// a pgx pool that the aggregation engine turns into in-memory lookups.
// It can point at a replica; no query here writes.
type ReportStore struct {
	pool *pgxpool.Pool
}

func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

const attemptColumns = `id, user_id, quiz_id, score, submitted_at, created_at`

func (s *ReportStore) AttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE user_id=$1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

func (s *ReportStore) AttemptsByQuiz(ctx context.Context, quizID int64) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE quiz_id=$1 ORDER BY created_at`, quizID)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

func (s *ReportStore) AllAttempts(ctx context.Context) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	return scanAttempts(rows)
}

func (s *ReportStore) QuizzesByID(ctx context.Context, ids []int64) (map[int64]*domain.Quiz, error) {
	out := make(map[int64]*domain.Quiz, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, subject_id, start_time, end_time, created_at FROM quizzes WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		quiz := new(domain.Quiz)
		if err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.SubjectID, &quiz.StartTime, &quiz.EndTime, &quiz.CreatedAt); err != nil {
			return nil, err
		}
		out[quiz.ID] = quiz
	}
	return out, rows.Err()
}

func (s *ReportStore) SubjectsByID(ctx context.Context, ids []int64) (map[int64]*domain.Subject, error) {
	out := make(map[int64]*domain.Subject, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, code FROM subjects WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		subject := new(domain.Subject)
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.Code); err != nil {
			return nil, err
		}
		out[subject.ID] = subject
	}
	return out, rows.Err()
}

func (s *ReportStore) UsersByID(ctx context.Context, ids []int64) (map[int64]*domain.User, error) {
	out := make(map[int64]*domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, full_name, role FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		user := new(domain.User)
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.Role); err != nil {
			return nil, err
		}
		out[user.ID] = user
	}
	return out, rows.Err()
}

func (s *ReportStore) QuizTotals(ctx context.Context, ids []int64) (map[int64]float64, error) {
	out := make(map[int64]float64, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT quiz_id, COALESCE(SUM(marks), 0) FROM questions WHERE quiz_id = ANY($1) GROUP BY quiz_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var quizID int64
		var total float64
		if err := rows.Scan(&quizID, &total); err != nil {
			return nil, err
		}
		out[quizID] = total
	}
	return out, rows.Err()
}

func (s *ReportStore) QuestionCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT quiz_id, COUNT(*) FROM questions WHERE quiz_id = ANY($1) GROUP BY quiz_id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var quizID int64
		var n int
		if err := rows.Scan(&quizID, &n); err != nil {
			return nil, err
		}
		out[quizID] = n
	}
	return out, rows.Err()
}

func (s *ReportStore) ChapterNamesByQuiz(ctx context.Context, ids []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT qc.quiz_id, c.name
		   FROM quiz_chapters qc JOIN chapters c ON c.id = qc.chapter_id
		  WHERE qc.quiz_id = ANY($1) ORDER BY c.id`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var quizID int64
		var name string
		if err := rows.Scan(&quizID, &name); err != nil {
			return nil, err
		}
		out[quizID] = append(out[quizID], name)
	}
	return out, rows.Err()
}

func (s *ReportStore) SiteCounts(ctx context.Context) (domain.SiteStats, error) {
	var stats domain.SiteStats
	err := s.pool.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM quizzes),
		       (SELECT COUNT(*) FROM questions),
		       (SELECT COUNT(*) FROM chapters),
		       (SELECT COUNT(*) FROM subjects),
		       (SELECT COUNT(*) FROM users)`).
		Scan(&stats.TotalQuizzes, &stats.TotalQuestions, &stats.TotalChapters, &stats.TotalSubjects, &stats.TotalUsers)
	return stats, err
}

func (s *ReportStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, email, full_name, role FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.Role); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *ReportStore) QuizzesCreatedSince(ctx context.Context, t time.Time) ([]domain.Quiz, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, subject_id, start_time, end_time, created_at FROM quizzes WHERE created_at >= $1 ORDER BY created_at`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quizzes []domain.Quiz
	for rows.Next() {
		var quiz domain.Quiz
		if err := rows.Scan(&quiz.ID, &quiz.Title, &quiz.SubjectID, &quiz.StartTime, &quiz.EndTime, &quiz.CreatedAt); err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, rows.Err()
}

func scanAttempts(rows pgx.Rows) ([]domain.Attempt, error) {
	defer rows.Close()
	var attempts []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuizID, &a.Score, &a.SubmittedAt, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
