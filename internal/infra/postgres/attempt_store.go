package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quizmaster-service/internal/domain"
)

// AttemptStore persists attempts. The unique (user_id, quiz_id) index is
// the backstop against concurrent duplicate starts.
type AttemptStore struct {
	db *bun.DB
}

func NewAttemptStore(db *bun.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

// InsertIfAbsent returns the existing attempt for (user, quiz) or inserts
// a fresh one. A uniqueness violation at insert time means a concurrent
// start won the race, so the winner's row is re-fetched instead of
// surfacing the conflict.
func (s *AttemptStore) InsertIfAbsent(ctx context.Context, userID, quizID int64) (*domain.Attempt, bool, error) {
	existing, err := s.byUserQuiz(ctx, userID, quizID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, domain.ErrAttemptNotFound) {
		return nil, false, err
	}

	attempt := &domain.Attempt{UserID: userID, QuizID: quizID, CreatedAt: time.Now().UTC()}
	if _, err := s.db.NewInsert().Model(attempt).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			winner, ferr := s.byUserQuiz(ctx, userID, quizID)
			return winner, false, ferr
		}
		return nil, false, err
	}
	return attempt, true, nil
}

func (s *AttemptStore) AttemptByID(ctx context.Context, id int64) (*domain.Attempt, error) {
	attempt := new(domain.Attempt)
	err := s.db.NewSelect().Model(attempt).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, err
}

// FinishAttempt records the final score and the terminal submitted_at in
// one row-level write; no other path mutates the row.
func (s *AttemptStore) FinishAttempt(ctx context.Context, id int64, score float64, at time.Time) error {
	_, err := s.db.NewUpdate().Model((*domain.Attempt)(nil)).
		Set("score = ?", score).
		Set("submitted_at = ?", at.UTC()).
		Where("id = ?", id).Exec(ctx)
	return err
}

// AttemptedQuizIDs feeds the upcoming-quizzes filter.
func (s *AttemptStore) AttemptedQuizIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	var quizIDs []int64
	err := s.db.NewSelect().Model((*domain.Attempt)(nil)).
		Column("quiz_id").
		Where("user_id = ?", userID).
		Scan(ctx, &quizIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]struct{}, len(quizIDs))
	for _, id := range quizIDs {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *AttemptStore) byUserQuiz(ctx context.Context, userID, quizID int64) (*domain.Attempt, error) {
	attempt := new(domain.Attempt)
	err := s.db.NewSelect().Model(attempt).
		Where("a.user_id = ? AND a.quiz_id = ?", userID, quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	return attempt, err
}
