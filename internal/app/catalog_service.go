package app

import (
	"context"
	"fmt"
	"time"

	"quizmaster-service/internal/domain"
)

// QuizFilter narrows and pages quiz listings.
type QuizFilter struct {
	SubjectID int64
	ChapterID int64
	Page      int
	Size      int
}

// QuizPage is one page of a quiz listing.
type QuizPage struct {
	Quizzes    []QuizRow `json:"quizzes"`
	TotalItems int       `json:"totalItems"`
	TotalPages int       `json:"totalPages"`
	Page       int       `json:"currentPage"`
	HasNext    bool      `json:"hasNext"`
	HasPrev    bool      `json:"hasPrev"`
}

// QuizRow is a listing row with the derived total.
type QuizRow struct {
	ID         int64   `json:"id"`
	Title      string  `json:"title"`
	SubjectID  int64   `json:"subjectId"`
	TotalMarks float64 `json:"totalMarks"`
	ChapterIDs []int64 `json:"chapters"`
}

// QuestionPage is one page of a quiz's questions.
type QuestionPage struct {
	Questions  []domain.Question `json:"questions"`
	TotalPages int               `json:"totalPages"`
	Page       int               `json:"currentPage"`
	HasNext    bool              `json:"hasNext"`
	HasPrev    bool              `json:"hasPrev"`
}

// UpcomingQuiz is a feed entry for quizzes the user can still take.
type UpcomingQuiz struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Subject      string  `json:"subject"`
	Description  string  `json:"description,omitempty"`
	NumQuestions int     `json:"numQuestions"`
	TotalMarks   float64 `json:"totalMarks"`
	StartTime    string  `json:"startTime"`
	EndTime      string  `json:"endTime"`
	Duration     string  `json:"duration"`
	StartsInSec  float64 `json:"startsIn"`
	EndsInSec    float64 `json:"endsIn"`
}

// CatalogStore owns durable storage for subjects, chapters, quizzes,
// questions and options. CreateQuestion must run as one transaction:
// options get their ids inside it and the positional correct-answer
// indices are translated to those ids before commit.
type CatalogStore interface {
	CreateSubject(ctx context.Context, s *domain.Subject) error
	UpdateSubject(ctx context.Context, s *domain.Subject) error
	DeleteSubject(ctx context.Context, id int64) error
	SubjectByID(ctx context.Context, id int64) (*domain.Subject, error)
	ListSubjects(ctx context.Context) ([]domain.Subject, error)
	SubjectExists(ctx context.Context, name, code string, excludeID int64) (bool, error)
	SearchSubjects(ctx context.Context, q string, limit int) ([]domain.Subject, error)

	CreateChapter(ctx context.Context, c *domain.Chapter) error
	UpdateChapter(ctx context.Context, c *domain.Chapter) error
	DeleteChapter(ctx context.Context, id int64) error
	ChapterByID(ctx context.Context, id int64) (*domain.Chapter, error)
	ListChapters(ctx context.Context, subjectID int64) ([]domain.Chapter, error)
	ChapterExists(ctx context.Context, name, code string, excludeID int64) (bool, error)
	ChaptersByIDs(ctx context.Context, ids []int64) ([]domain.Chapter, error)

	CreateQuiz(ctx context.Context, q *domain.Quiz, chapterIDs []int64) error
	UpdateQuiz(ctx context.Context, q *domain.Quiz) error
	DeleteQuiz(ctx context.Context, id int64) error
	QuizByID(ctx context.Context, id int64) (*domain.Quiz, error)
	ListQuizzes(ctx context.Context, f QuizFilter) ([]domain.Quiz, int, error)
	OpenQuizzes(ctx context.Context, now time.Time) ([]domain.Quiz, error)
	SearchQuizzes(ctx context.Context, q string, limit int) ([]domain.Quiz, error)

	CreateQuestion(ctx context.Context, q *domain.Question, optionTexts []string, correctIdx []int) error
	UpdateQuestion(ctx context.Context, q *domain.Question, optionTexts []string) error
	DeleteQuestion(ctx context.Context, id int64) error
	QuestionByID(ctx context.Context, id int64) (*domain.Question, error)
	QuestionsByQuiz(ctx context.Context, quizID int64, page, size int) ([]domain.Question, int, error)

	SubjectsByID(ctx context.Context, ids []int64) (map[int64]*domain.Subject, error)
}

// AttemptReader is the slice of attempt history the catalog needs for the
// upcoming-quizzes feed.
type AttemptReader interface {
	AttemptedQuizIDs(ctx context.Context, userID int64) (map[int64]struct{}, error)
}

// CatalogService enforces authoring rules over the catalog store. Role
// gating happens at the transport edge; this layer owns business rules.
type CatalogService struct {
	store    CatalogStore
	attempts AttemptReader
	now      func() time.Time
}

func NewCatalogService(store CatalogStore, attempts AttemptReader) *CatalogService {
	return &CatalogService{store: store, attempts: attempts, now: time.Now}
}

// --- subjects ---

type SubjectInput struct {
	Name        string
	Code        string
	Description string
}

func (s *CatalogService) CreateSubject(ctx context.Context, in SubjectInput) (*domain.Subject, error) {
	if in.Name == "" || in.Code == "" {
		return nil, domain.Validationf("both 'name' and 'code' fields are required")
	}
	taken, err := s.store.SubjectExists(ctx, in.Name, in.Code, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Validationf("subject with the same name or code already exists")
	}
	subject := &domain.Subject{Name: in.Name, Code: in.Code, Description: in.Description}
	if err := s.store.CreateSubject(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *CatalogService) UpdateSubject(ctx context.Context, id int64, in SubjectInput) (*domain.Subject, error) {
	subject, err := s.store.SubjectByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		subject.Name = in.Name
	}
	if in.Code != "" {
		subject.Code = in.Code
	}
	if in.Description != "" {
		subject.Description = in.Description
	}
	taken, err := s.store.SubjectExists(ctx, subject.Name, subject.Code, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Validationf("subject with the same name or code already exists")
	}
	if err := s.store.UpdateSubject(ctx, subject); err != nil {
		return nil, err
	}
	return subject, nil
}

func (s *CatalogService) DeleteSubject(ctx context.Context, id int64) error {
	if _, err := s.store.SubjectByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteSubject(ctx, id)
}

func (s *CatalogService) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	return s.store.ListSubjects(ctx)
}

// --- chapters ---

type ChapterInput struct {
	Name        string
	Code        string
	Description string
	SubjectID   int64
}

func (s *CatalogService) CreateChapter(ctx context.Context, in ChapterInput) (*domain.Chapter, error) {
	if in.Name == "" || in.Code == "" {
		return nil, domain.Validationf("both 'name' and 'code' fields are required")
	}
	if in.SubjectID <= 0 {
		return nil, domain.Validationf("a valid 'subject_id' is required")
	}
	if _, err := s.store.SubjectByID(ctx, in.SubjectID); err != nil {
		return nil, err
	}
	taken, err := s.store.ChapterExists(ctx, in.Name, in.Code, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Validationf("chapter with the same name or code already exists")
	}
	chapter := &domain.Chapter{Name: in.Name, Code: in.Code, Description: in.Description, SubjectID: in.SubjectID}
	if err := s.store.CreateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *CatalogService) UpdateChapter(ctx context.Context, id int64, in ChapterInput) (*domain.Chapter, error) {
	if in.Name == "" || in.Code == "" {
		return nil, domain.Validationf("both 'name' and 'code' fields are required")
	}
	chapter, err := s.store.ChapterByID(ctx, id)
	if err != nil {
		return nil, err
	}
	taken, err := s.store.ChapterExists(ctx, in.Name, in.Code, id)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.Validationf("chapter with the same name or code already exists")
	}
	chapter.Name = in.Name
	chapter.Code = in.Code
	chapter.Description = in.Description
	if err := s.store.UpdateChapter(ctx, chapter); err != nil {
		return nil, err
	}
	return chapter, nil
}

func (s *CatalogService) DeleteChapter(ctx context.Context, id int64) error {
	if _, err := s.store.ChapterByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteChapter(ctx, id)
}

func (s *CatalogService) GetChapter(ctx context.Context, id int64) (*domain.Chapter, error) {
	return s.store.ChapterByID(ctx, id)
}

func (s *CatalogService) ListChapters(ctx context.Context, subjectID int64) ([]domain.Chapter, error) {
	return s.store.ListChapters(ctx, subjectID)
}

// --- quizzes ---

type QuizInput struct {
	Title            string
	Description      string
	SubjectID        int64
	ChapterIDs       []int64
	TimeLimitMinutes *int
	StartTime        *time.Time
	EndTime          *time.Time
}

func (s *CatalogService) CreateQuiz(ctx context.Context, in QuizInput) (*domain.Quiz, error) {
	if in.Title == "" || in.SubjectID <= 0 || in.StartTime == nil || in.EndTime == nil {
		return nil, domain.Validationf("fields 'title', 'subject_id', 'start_time', and 'end_time' are required")
	}
	if !in.StartTime.Before(*in.EndTime) {
		return nil, domain.Validationf("start time must be before end time")
	}
	if _, err := s.store.SubjectByID(ctx, in.SubjectID); err != nil {
		return nil, err
	}
	chapters, err := s.store.ChaptersByIDs(ctx, in.ChapterIDs)
	if err != nil {
		return nil, err
	}
	if len(chapters) != len(in.ChapterIDs) {
		return nil, domain.Validationf("some or all chapters do not exist")
	}

	quiz := &domain.Quiz{
		Title:            in.Title,
		Description:      in.Description,
		SubjectID:        in.SubjectID,
		TimeLimitMinutes: in.TimeLimitMinutes,
		StartTime:        in.StartTime.UTC(),
		EndTime:          in.EndTime.UTC(),
	}
	if err := s.store.CreateQuiz(ctx, quiz, in.ChapterIDs); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) UpdateQuiz(ctx context.Context, id int64, in QuizInput) (*domain.Quiz, error) {
	quiz, err := s.store.QuizByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != "" {
		quiz.Title = in.Title
	}
	if in.Description != "" {
		quiz.Description = in.Description
	}
	if in.TimeLimitMinutes != nil {
		quiz.TimeLimitMinutes = in.TimeLimitMinutes
	}
	if in.StartTime != nil {
		quiz.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		quiz.EndTime = in.EndTime.UTC()
	}
	if !quiz.StartTime.Before(quiz.EndTime) {
		return nil, domain.Validationf("start time must be before end time")
	}
	now := s.now()
	quiz.UpdatedAt = &now
	if err := s.store.UpdateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *CatalogService) DeleteQuiz(ctx context.Context, id int64) error {
	if _, err := s.store.QuizByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteQuiz(ctx, id)
}

func (s *CatalogService) GetQuiz(ctx context.Context, id int64) (*domain.Quiz, error) {
	return s.store.QuizByID(ctx, id)
}

func (s *CatalogService) ListQuizzes(ctx context.Context, f QuizFilter) (QuizPage, error) {
	if f.Page < 1 || f.Size < 1 {
		return QuizPage{}, domain.Validationf("page and size must be positive integers")
	}
	quizzes, total, err := s.store.ListQuizzes(ctx, f)
	if err != nil {
		return QuizPage{}, err
	}
	rows := make([]QuizRow, 0, len(quizzes))
	for i := range quizzes {
		quiz := &quizzes[i]
		chapterIDs := make([]int64, 0, len(quiz.Chapters))
		for _, c := range quiz.Chapters {
			chapterIDs = append(chapterIDs, c.ID)
		}
		rows = append(rows, QuizRow{
			ID:         quiz.ID,
			Title:      quiz.Title,
			SubjectID:  quiz.SubjectID,
			TotalMarks: quiz.TotalMarks(),
			ChapterIDs: chapterIDs,
		})
	}
	pages := (total + f.Size - 1) / f.Size
	return QuizPage{
		Quizzes:    rows,
		TotalItems: total,
		TotalPages: pages,
		Page:       f.Page,
		HasNext:    f.Page < pages,
		HasPrev:    f.Page > 1,
	}, nil
}

// UpcomingQuizzes lists quizzes with at least one question that have not
// ended and that the user has not yet attempted.
func (s *CatalogService) UpcomingQuizzes(ctx context.Context, userID int64) ([]UpcomingQuiz, error) {
	now := s.now().UTC()
	quizzes, err := s.store.OpenQuizzes(ctx, now)
	if err != nil {
		return nil, err
	}
	attempted, err := s.attempts.AttemptedQuizIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	subjectIDs := make([]int64, 0, len(quizzes))
	for i := range quizzes {
		subjectIDs = append(subjectIDs, quizzes[i].SubjectID)
	}
	subjects, err := s.store.SubjectsByID(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}

	out := make([]UpcomingQuiz, 0, len(quizzes))
	for i := range quizzes {
		quiz := &quizzes[i]
		if len(quiz.Questions) == 0 {
			continue
		}
		if _, done := attempted[quiz.ID]; done {
			continue
		}
		subjectName := ""
		if subject, ok := subjects[quiz.SubjectID]; ok {
			subjectName = subject.Name
		}
		start := quiz.StartTime.UTC()
		end := quiz.EndTime.UTC()
		startsIn := start.Sub(now).Seconds()
		if startsIn < 0 {
			startsIn = 0
		}
		out = append(out, UpcomingQuiz{
			ID:           quiz.ID,
			Title:        quiz.Title,
			Subject:      subjectName,
			Description:  quiz.Description,
			NumQuestions: len(quiz.Questions),
			TotalMarks:   quiz.TotalMarks(),
			StartTime:    start.Format("2006-01-02 15:04"),
			EndTime:      end.Format("2006-01-02 15:04"),
			Duration:     formatDuration(quiz.TimeLimitMinutes),
			StartsInSec:  startsIn,
			EndsInSec:    end.Sub(now).Seconds(),
		})
	}
	return out, nil
}

// --- questions ---

type QuestionInput struct {
	QuizID         int64
	Text           string
	Marks          float64
	NegativeMarks  float64
	Type           domain.QuestionType
	Options        []string
	CorrectIndices []int
}

func (s *CatalogService) AddQuestion(ctx context.Context, in QuestionInput) (*domain.Question, error) {
	if in.QuizID <= 0 || in.Text == "" || len(in.Options) == 0 || len(in.CorrectIndices) == 0 {
		return nil, domain.Validationf("fields 'quiz_id', 'text', 'marks', 'options' and 'correct_options' are required")
	}
	if in.Marks <= 0 {
		return nil, domain.Validationf("'marks' must be positive")
	}
	if in.NegativeMarks < 0 {
		return nil, domain.Validationf("'negative_marks' must not be negative")
	}
	if in.Type == "" {
		in.Type = domain.SingleChoice
	}
	switch in.Type {
	case domain.SingleChoice:
		if len(in.CorrectIndices) != 1 {
			return nil, domain.Validationf("single-choice questions need exactly one correct option")
		}
	case domain.MultiChoice:
	default:
		return nil, domain.Validationf("unknown question type %q", in.Type)
	}
	for _, idx := range in.CorrectIndices {
		if idx < 0 || idx >= len(in.Options) {
			return nil, domain.Validationf("invalid indices in 'correct_options'")
		}
	}
	if _, err := s.store.QuizByID(ctx, in.QuizID); err != nil {
		return nil, err
	}

	question := &domain.Question{
		QuizID:        in.QuizID,
		Text:          in.Text,
		Marks:         in.Marks,
		NegativeMarks: in.NegativeMarks,
		Type:          in.Type,
	}
	if err := s.store.CreateQuestion(ctx, question, in.Options, in.CorrectIndices); err != nil {
		return nil, err
	}
	return question, nil
}

type QuestionUpdate struct {
	Text           string
	Marks          *float64
	NegativeMarks  *float64
	Type           domain.QuestionType
	Options        []string
	CorrectOptions []int64
}

func (s *CatalogService) UpdateQuestion(ctx context.Context, id int64, in QuestionUpdate) (*domain.Question, error) {
	question, err := s.store.QuestionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Text != "" {
		question.Text = in.Text
	}
	if in.Marks != nil {
		if *in.Marks <= 0 {
			return nil, domain.Validationf("'marks' must be positive")
		}
		question.Marks = *in.Marks
	}
	if in.NegativeMarks != nil {
		if *in.NegativeMarks < 0 {
			return nil, domain.Validationf("'negative_marks' must not be negative")
		}
		question.NegativeMarks = *in.NegativeMarks
	}
	if in.Type != "" {
		question.Type = in.Type
	}
	if in.CorrectOptions != nil {
		question.CorrectOptions = in.CorrectOptions
	}
	if err := s.store.UpdateQuestion(ctx, question, in.Options); err != nil {
		return nil, err
	}
	return question, nil
}

func (s *CatalogService) DeleteQuestion(ctx context.Context, id int64) error {
	if _, err := s.store.QuestionByID(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteQuestion(ctx, id)
}

func (s *CatalogService) QuizQuestions(ctx context.Context, quizID int64, page, size int) (QuestionPage, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	questions, total, err := s.store.QuestionsByQuiz(ctx, quizID, page, size)
	if err != nil {
		return QuestionPage{}, err
	}
	pages := (total + size - 1) / size
	return QuestionPage{
		Questions:  questions,
		TotalPages: pages,
		Page:       page,
		HasNext:    page < pages,
		HasPrev:    page > 1,
	}, nil
}

// --- search ---

// SearchResults groups catalog search hits for the admin console.
type SearchResults struct {
	Subjects []domain.Subject `json:"subjects"`
	Quizzes  []domain.Quiz    `json:"quizzes"`
}

func (s *CatalogService) Search(ctx context.Context, q string, limit int) (SearchResults, error) {
	out := SearchResults{Subjects: []domain.Subject{}, Quizzes: []domain.Quiz{}}
	if q == "" {
		return out, nil
	}
	subjects, err := s.store.SearchSubjects(ctx, q, limit)
	if err != nil {
		return out, err
	}
	quizzes, err := s.store.SearchQuizzes(ctx, q, limit)
	if err != nil {
		return out, err
	}
	out.Subjects = subjects
	out.Quizzes = quizzes
	return out, nil
}

func formatDuration(minutes *int) string {
	if minutes == nil {
		return "Unlimited"
	}
	return fmt.Sprintf("%02d:%02d", *minutes/60, *minutes%60)
}
