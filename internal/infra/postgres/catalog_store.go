package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// CatalogStore is the bun-backed implementation of app.CatalogStore and
// the catalog half of app.Catalog.
type CatalogStore struct {
	db *bun.DB
}

func NewCatalogStore(db *bun.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// --- subjects ---

func (s *CatalogStore) CreateSubject(ctx context.Context, subject *domain.Subject) error {
	subject.CreatedAt = time.Now().UTC()
	_, err := s.db.NewInsert().Model(subject).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.Validationf("subject with the same name or code already exists")
	}
	return err
}

func (s *CatalogStore) UpdateSubject(ctx context.Context, subject *domain.Subject) error {
	_, err := s.db.NewUpdate().Model(subject).WherePK().Exec(ctx)
	return err
}

func (s *CatalogStore) DeleteSubject(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*domain.Subject)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *CatalogStore) SubjectByID(ctx context.Context, id int64) (*domain.Subject, error) {
	subject := new(domain.Subject)
	err := s.db.NewSelect().Model(subject).
		Relation("Chapters").
		Where("s.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSubjectNotFound
	}
	return subject, err
}

func (s *CatalogStore) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	var subjects []domain.Subject
	err := s.db.NewSelect().Model(&subjects).
		Relation("Chapters").
		Order("s.created_at ASC").Scan(ctx)
	return subjects, err
}

func (s *CatalogStore) SubjectExists(ctx context.Context, name, code string, excludeID int64) (bool, error) {
	q := s.db.NewSelect().Model((*domain.Subject)(nil)).
		Where("s.name = ? OR s.code = ?", name, code)
	if excludeID != 0 {
		q = q.Where("s.id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (s *CatalogStore) SearchSubjects(ctx context.Context, query string, limit int) ([]domain.Subject, error) {
	var subjects []domain.Subject
	err := s.db.NewSelect().Model(&subjects).
		Where("s.name ILIKE ?", "%"+query+"%").
		Limit(limit).Scan(ctx)
	return subjects, err
}

func (s *CatalogStore) SubjectsByID(ctx context.Context, ids []int64) (map[int64]*domain.Subject, error) {
	out := make(map[int64]*domain.Subject, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var subjects []domain.Subject
	if err := s.db.NewSelect().Model(&subjects).Where("s.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for i := range subjects {
		out[subjects[i].ID] = &subjects[i]
	}
	return out, nil
}

// --- chapters ---

func (s *CatalogStore) CreateChapter(ctx context.Context, chapter *domain.Chapter) error {
	chapter.CreatedAt = time.Now().UTC()
	_, err := s.db.NewInsert().Model(chapter).Exec(ctx)
	if isUniqueViolation(err) {
		return domain.Validationf("chapter with the same name or code already exists")
	}
	return err
}

func (s *CatalogStore) UpdateChapter(ctx context.Context, chapter *domain.Chapter) error {
	_, err := s.db.NewUpdate().Model(chapter).WherePK().Exec(ctx)
	return err
}

func (s *CatalogStore) DeleteChapter(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*domain.Chapter)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *CatalogStore) ChapterByID(ctx context.Context, id int64) (*domain.Chapter, error) {
	chapter := new(domain.Chapter)
	err := s.db.NewSelect().Model(chapter).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrChapterNotFound
	}
	return chapter, err
}

func (s *CatalogStore) ListChapters(ctx context.Context, subjectID int64) ([]domain.Chapter, error) {
	var chapters []domain.Chapter
	q := s.db.NewSelect().Model(&chapters).Order("c.id ASC")
	if subjectID != 0 {
		q = q.Where("c.subject_id = ?", subjectID)
	}
	return chapters, q.Scan(ctx)
}

func (s *CatalogStore) ChapterExists(ctx context.Context, name, code string, excludeID int64) (bool, error) {
	q := s.db.NewSelect().Model((*domain.Chapter)(nil)).
		Where("c.name = ? OR c.code = ?", name, code)
	if excludeID != 0 {
		q = q.Where("c.id != ?", excludeID)
	}
	return q.Exists(ctx)
}

func (s *CatalogStore) ChaptersByIDs(ctx context.Context, ids []int64) ([]domain.Chapter, error) {
	if len(ids) == 0 {
		return []domain.Chapter{}, nil
	}
	var chapters []domain.Chapter
	err := s.db.NewSelect().Model(&chapters).Where("c.id IN (?)", bun.In(ids)).Scan(ctx)
	return chapters, err
}

// --- quizzes ---

func (s *CatalogStore) CreateQuiz(ctx context.Context, quiz *domain.Quiz, chapterIDs []int64) error {
	quiz.CreatedAt = time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(quiz).Exec(ctx); err != nil {
			return err
		}
		if len(chapterIDs) == 0 {
			return nil
		}
		links := make([]domain.QuizChapter, 0, len(chapterIDs))
		for _, chapterID := range chapterIDs {
			links = append(links, domain.QuizChapter{QuizID: quiz.ID, ChapterID: chapterID})
		}
		_, err := tx.NewInsert().Model(&links).Exec(ctx)
		return err
	})
}

func (s *CatalogStore) UpdateQuiz(ctx context.Context, quiz *domain.Quiz) error {
	_, err := s.db.NewUpdate().Model(quiz).
		Column("title", "description", "time_limit_minutes", "start_time", "end_time", "updated_at").
		WherePK().Exec(ctx)
	return err
}

func (s *CatalogStore) DeleteQuiz(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*domain.Quiz)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

// QuizByID loads the quiz with chapters, questions and options, enough
// for window checks, derived totals and detail rendering.
func (s *CatalogStore) QuizByID(ctx context.Context, id int64) (*domain.Quiz, error) {
	quiz := new(domain.Quiz)
	err := s.db.NewSelect().Model(quiz).
		Relation("Chapters").
		Relation("Questions").
		Relation("Questions.Options").
		Where("q.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuizNotFound
	}
	return quiz, err
}

func (s *CatalogStore) ListQuizzes(ctx context.Context, f app.QuizFilter) ([]domain.Quiz, int, error) {
	var quizzes []domain.Quiz
	q := s.db.NewSelect().Model(&quizzes).
		Relation("Chapters").
		Relation("Questions").
		Order("q.id ASC")
	if f.SubjectID != 0 {
		q = q.Where("q.subject_id = ?", f.SubjectID)
	}
	if f.ChapterID != 0 {
		q = q.Where("EXISTS (SELECT 1 FROM quiz_chapters qc WHERE qc.quiz_id = q.id AND qc.chapter_id = ?)", f.ChapterID)
	}
	total, err := q.Limit(f.Size).Offset((f.Page - 1) * f.Size).ScanAndCount(ctx)
	return quizzes, total, err
}

func (s *CatalogStore) OpenQuizzes(ctx context.Context, now time.Time) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	err := s.db.NewSelect().Model(&quizzes).
		Relation("Questions").
		Where("q.end_time >= ?", now).
		Order("q.start_time ASC").Scan(ctx)
	return quizzes, err
}

func (s *CatalogStore) SearchQuizzes(ctx context.Context, query string, limit int) ([]domain.Quiz, error) {
	var quizzes []domain.Quiz
	err := s.db.NewSelect().Model(&quizzes).
		Where("q.title ILIKE ?", "%"+query+"%").
		Limit(limit).Scan(ctx)
	return quizzes, err
}

// --- questions ---

// CreateQuestion inserts the question and its options in one transaction
// and translates the positional correct-answer indices into the option
// ids assigned during that same transaction.
func (s *CatalogStore) CreateQuestion(ctx context.Context, question *domain.Question, optionTexts []string, correctIdx []int) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		question.CorrectOptions = []int64{}
		if _, err := tx.NewInsert().Model(question).Exec(ctx); err != nil {
			return err
		}

		options := make([]*domain.Option, 0, len(optionTexts))
		for _, text := range optionTexts {
			options = append(options, &domain.Option{QuestionID: question.ID, Text: text})
		}
		if _, err := tx.NewInsert().Model(&options).Exec(ctx); err != nil {
			return err
		}

		correct := make([]int64, 0, len(correctIdx))
		for _, idx := range correctIdx {
			correct = append(correct, options[idx].ID)
		}
		question.CorrectOptions = correct
		question.Options = options

		_, err := tx.NewUpdate().Model(question).Column("correct_options").WherePK().Exec(ctx)
		return err
	})
}

// UpdateQuestion rewrites scalar fields; when optionTexts is non-empty the
// option list is replaced wholesale, mirroring the authoring UI.
func (s *CatalogStore) UpdateQuestion(ctx context.Context, question *domain.Question, optionTexts []string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model(question).
			Column("text", "marks", "negative_marks", "question_type", "correct_options").
			WherePK().Exec(ctx); err != nil {
			return err
		}
		if len(optionTexts) == 0 {
			return nil
		}
		if _, err := tx.NewDelete().Model((*domain.Option)(nil)).Where("question_id = ?", question.ID).Exec(ctx); err != nil {
			return err
		}
		options := make([]*domain.Option, 0, len(optionTexts))
		for _, text := range optionTexts {
			options = append(options, &domain.Option{QuestionID: question.ID, Text: text})
		}
		if _, err := tx.NewInsert().Model(&options).Exec(ctx); err != nil {
			return err
		}
		question.Options = options
		return nil
	})
}

func (s *CatalogStore) DeleteQuestion(ctx context.Context, id int64) error {
	_, err := s.db.NewDelete().Model((*domain.Question)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *CatalogStore) QuestionByID(ctx context.Context, id int64) (*domain.Question, error) {
	question := new(domain.Question)
	err := s.db.NewSelect().Model(question).
		Relation("Options").
		Where("qn.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	return question, err
}

func (s *CatalogStore) QuestionsByQuiz(ctx context.Context, quizID int64, page, size int) ([]domain.Question, int, error) {
	var questions []domain.Question
	total, err := s.db.NewSelect().Model(&questions).
		Relation("Options").
		Where("qn.quiz_id = ?", quizID).
		Order("qn.id ASC").
		Limit(size).Offset((page - 1) * size).
		ScanAndCount(ctx)
	return questions, total, err
}

// QuestionsByID batch-loads questions for the scoring path.
func (s *CatalogStore) QuestionsByID(ctx context.Context, ids []int64) (map[int64]*domain.Question, error) {
	out := make(map[int64]*domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var questions []domain.Question
	if err := s.db.NewSelect().Model(&questions).Where("qn.id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for i := range questions {
		out[questions[i].ID] = &questions[i]
	}
	return out, nil
}
