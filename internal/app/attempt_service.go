package app

import (
	"context"
	"time"

	"quizmaster-service/internal/domain"
)

// Catalog reads quiz metadata and questions. The attempt engine never
// mutates catalog data.
type Catalog interface {
	// QuizByID returns the quiz with its questions loaded.
	QuizByID(ctx context.Context, id int64) (*domain.Quiz, error)
	// QuestionsByID batch-loads questions keyed by id. Missing ids are
	// simply absent from the map.
	QuestionsByID(ctx context.Context, ids []int64) (map[int64]*domain.Question, error)
}

// AttemptStore persists attempts. InsertIfAbsent must be atomic with the
// existence check: under concurrent starts for the same (user, quiz) the
// store-level unique constraint is the backstop and the existing row is
// returned instead of an error.
type AttemptStore interface {
	// InsertIfAbsent returns the attempt for (user, quiz), creating it when
	// none exists. The bool reports whether a new row was inserted.
	InsertIfAbsent(ctx context.Context, userID, quizID int64) (*domain.Attempt, bool, error)
	AttemptByID(ctx context.Context, id int64) (*domain.Attempt, error)
	FinishAttempt(ctx context.Context, id int64, score float64, at time.Time) error
}

// StartResult is returned from a successful (or repeated) start.
type StartResult struct {
	AttemptID        int64  `json:"attemptId"`
	QuizTitle        string `json:"quizTitle"`
	TimeLimitMinutes *int   `json:"timeLimit,omitempty"`
	AlreadyStarted   bool   `json:"alreadyStarted"`
}

// SubmitResult carries the graded outcome plus the correct-answer
// specification for every answered question, so clients can render a review.
type SubmitResult struct {
	Score          float64           `json:"score"`
	TotalMarks     float64           `json:"totalMarks"`
	QuizTitle      string            `json:"quizTitle"`
	CorrectAnswers map[int64][]int64 `json:"correctAnswers"`
}

// AttemptService is the attempt state machine: not-started -> in-progress
// -> submitted. Starting is idempotent and gated by the availability
// window; submitting is allowed exactly once.
type AttemptService struct {
	catalog  Catalog
	attempts AttemptStore
	now      func() time.Time
}

func NewAttemptService(catalog Catalog, attempts AttemptStore) *AttemptService {
	return &AttemptService{catalog: catalog, attempts: attempts, now: time.Now}
}

// NewAttemptServiceWithClock is test-only for deterministic window checks.
func NewAttemptServiceWithClock(catalog Catalog, attempts AttemptStore, now func() time.Time) *AttemptService {
	return &AttemptService{catalog: catalog, attempts: attempts, now: now}
}

// Start begins an attempt if the quiz window is open. A repeated start
// returns the existing attempt so client retries never duplicate state.
func (s *AttemptService) Start(ctx context.Context, userID, quizID int64) (StartResult, error) {
	quiz, err := s.catalog.QuizByID(ctx, quizID)
	if err != nil {
		return StartResult{}, err
	}
	if !quiz.AvailableAt(s.now()) {
		return StartResult{}, domain.ErrQuizNotAvailable
	}

	attempt, created, err := s.attempts.InsertIfAbsent(ctx, userID, quizID)
	if err != nil {
		return StartResult{}, err
	}
	return StartResult{
		AttemptID:        attempt.ID,
		QuizTitle:        quiz.Title,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		AlreadyStarted:   !created,
	}, nil
}

// Submit scores the answers and transitions the attempt to its terminal
// state. Unknown question ids are skipped rather than erroring; questions
// from other quizzes are treated the same way. A second submit is
// rejected with ErrAttemptSubmitted.
func (s *AttemptService) Submit(ctx context.Context, attemptID, userID int64, answers map[int64][]int64) (SubmitResult, error) {
	attempt, err := s.attempts.AttemptByID(ctx, attemptID)
	if err != nil {
		return SubmitResult{}, err
	}
	if attempt.UserID != userID {
		return SubmitResult{}, domain.ErrUnauthorized
	}
	if attempt.Submitted() {
		return SubmitResult{}, domain.ErrAttemptSubmitted
	}

	quiz, err := s.catalog.QuizByID(ctx, attempt.QuizID)
	if err != nil {
		return SubmitResult{}, err
	}

	ids := make([]int64, 0, len(answers))
	for id := range answers {
		ids = append(ids, id)
	}
	questions, err := s.catalog.QuestionsByID(ctx, ids)
	if err != nil {
		return SubmitResult{}, err
	}

	var total float64
	correct := make(map[int64][]int64, len(answers))
	for questionID, selected := range answers {
		question, ok := questions[questionID]
		if !ok || question.QuizID != attempt.QuizID {
			continue
		}
		total += domain.Score(question, selected)
		correct[questionID] = question.CorrectOptions
	}

	if err := s.attempts.FinishAttempt(ctx, attempt.ID, total, s.now()); err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{
		Score:          total,
		TotalMarks:     quiz.TotalMarks(),
		QuizTitle:      quiz.Title,
		CorrectAnswers: correct,
	}, nil
}

// Result returns a finished or in-progress attempt to its owner.
func (s *AttemptService) Result(ctx context.Context, attemptID, userID int64) (*domain.Attempt, error) {
	attempt, err := s.attempts.AttemptByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, domain.ErrUnauthorized
	}
	return attempt, nil
}
