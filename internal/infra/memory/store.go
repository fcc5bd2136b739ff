package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
)

// Store keeps the whole dataset in process memory behind one mutex. It
// implements the same store interfaces as the Postgres layer, so the
// server can run without a database and service tests need no containers.
type Store struct {
	mu sync.Mutex

	users    map[int64]*domain.User
	subjects map[int64]*domain.Subject
	chapters map[int64]*domain.Chapter
	quizzes  map[int64]*domain.Quiz

	// quiz id -> chapter ids, insertion order preserved
	quizChapters map[int64][]int64

	questions map[int64]*domain.Question
	options   map[int64]*domain.Option
	attempts  map[int64]*domain.Attempt

	nextID int64
}

func NewStore() *Store {
	return &Store{
		users:        make(map[int64]*domain.User),
		subjects:     make(map[int64]*domain.Subject),
		chapters:     make(map[int64]*domain.Chapter),
		quizzes:      make(map[int64]*domain.Quiz),
		quizChapters: make(map[int64][]int64),
		questions:    make(map[int64]*domain.Question),
		options:      make(map[int64]*domain.Option),
		attempts:     make(map[int64]*domain.Attempt),
	}
}

func (s *Store) nextid() int64 {
	s.nextID++
	return s.nextID
}

// --- users ---

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.Validationf("email is already registered")
		}
	}
	u.ID = s.nextid()
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *Store) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) SearchUsers(ctx context.Context, q string, limit int) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(q)
	out := make([]domain.User, 0)
	for _, u := range s.sortedUsers() {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(u.FullName), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.sortedUsers() {
		out = append(out, *u)
	}
	return out, nil
}

func (s *Store) UsersByID(ctx context.Context, ids []int64) (map[int64]*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			clone := *u
			out[id] = &clone
		}
	}
	return out, nil
}

// --- subjects ---

func (s *Store) CreateSubject(ctx context.Context, sub *domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.ID = s.nextid()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	clone := *sub
	s.subjects[sub.ID] = &clone
	return nil
}

func (s *Store) UpdateSubject(ctx context.Context, sub *domain.Subject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[sub.ID]; !ok {
		return domain.ErrSubjectNotFound
	}
	clone := *sub
	s.subjects[sub.ID] = &clone
	return nil
}

func (s *Store) DeleteSubject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subjects[id]; !ok {
		return domain.ErrSubjectNotFound
	}
	delete(s.subjects, id)
	for cid, c := range s.chapters {
		if c.SubjectID == id {
			delete(s.chapters, cid)
		}
	}
	for qid, q := range s.quizzes {
		if q.SubjectID == id {
			s.deleteQuizLocked(qid)
		}
	}
	return nil
}

func (s *Store) SubjectByID(ctx context.Context, id int64) (*domain.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subjects[id]
	if !ok {
		return nil, domain.ErrSubjectNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *Store) ListSubjects(ctx context.Context) ([]domain.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Subject, 0, len(s.subjects))
	for _, sub := range s.subjects {
		out = append(out, *sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SubjectExists(ctx context.Context, name, code string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subjects {
		if sub.ID == excludeID {
			continue
		}
		if sub.Name == name || sub.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) SearchSubjects(ctx context.Context, q string, limit int) ([]domain.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(q)
	out := make([]domain.Subject, 0)
	for _, sub := range s.subjects {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(sub.Name), needle) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SubjectsByID(ctx context.Context, ids []int64) (map[int64]*domain.Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*domain.Subject, len(ids))
	for _, id := range ids {
		if sub, ok := s.subjects[id]; ok {
			clone := *sub
			out[id] = &clone
		}
	}
	return out, nil
}

// --- chapters ---

func (s *Store) CreateChapter(ctx context.Context, c *domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.nextid()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	clone := *c
	s.chapters[c.ID] = &clone
	return nil
}

func (s *Store) UpdateChapter(ctx context.Context, c *domain.Chapter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chapters[c.ID]; !ok {
		return domain.ErrChapterNotFound
	}
	clone := *c
	s.chapters[c.ID] = &clone
	return nil
}

func (s *Store) DeleteChapter(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chapters[id]; !ok {
		return domain.ErrChapterNotFound
	}
	delete(s.chapters, id)
	for quizID, chapterIDs := range s.quizChapters {
		kept := chapterIDs[:0]
		for _, cid := range chapterIDs {
			if cid != id {
				kept = append(kept, cid)
			}
		}
		s.quizChapters[quizID] = kept
	}
	return nil
}

func (s *Store) ChapterByID(ctx context.Context, id int64) (*domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chapters[id]
	if !ok {
		return nil, domain.ErrChapterNotFound
	}
	clone := *c
	return &clone, nil
}

func (s *Store) ListChapters(ctx context.Context, subjectID int64) ([]domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chapter, 0)
	for _, c := range s.chapters {
		if subjectID != 0 && c.SubjectID != subjectID {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ChapterExists(ctx context.Context, name, code string, excludeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chapters {
		if c.ID == excludeID {
			continue
		}
		if c.Name == name || c.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ChaptersByIDs(ctx context.Context, ids []int64) ([]domain.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Chapter, 0, len(ids))
	for _, id := range ids {
		if c, ok := s.chapters[id]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

// --- quizzes ---

func (s *Store) CreateQuiz(ctx context.Context, q *domain.Quiz, chapterIDs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextid()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	clone := *q
	clone.Chapters = nil
	clone.Questions = nil
	s.quizzes[q.ID] = &clone
	s.quizChapters[q.ID] = append([]int64(nil), chapterIDs...)
	return nil
}

func (s *Store) UpdateQuiz(ctx context.Context, q *domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[q.ID]; !ok {
		return domain.ErrQuizNotFound
	}
	clone := *q
	clone.Chapters = nil
	clone.Questions = nil
	s.quizzes[q.ID] = &clone
	return nil
}

func (s *Store) DeleteQuiz(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[id]; !ok {
		return domain.ErrQuizNotFound
	}
	s.deleteQuizLocked(id)
	return nil
}

func (s *Store) deleteQuizLocked(id int64) {
	delete(s.quizzes, id)
	delete(s.quizChapters, id)
	for qid, question := range s.questions {
		if question.QuizID == id {
			s.deleteQuestionLocked(qid)
		}
	}
	for aid, a := range s.attempts {
		if a.QuizID == id {
			delete(s.attempts, aid)
		}
	}
}

func (s *Store) QuizByID(ctx context.Context, id int64) (*domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.quizzes[id]
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return s.loadQuizLocked(q), nil
}

func (s *Store) ListQuizzes(ctx context.Context, f app.QuizFilter) ([]domain.Quiz, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matched := make([]*domain.Quiz, 0, len(s.quizzes))
	for _, q := range s.quizzes {
		if f.SubjectID != 0 && q.SubjectID != f.SubjectID {
			continue
		}
		if f.ChapterID != 0 && !containsID(s.quizChapters[q.ID], f.ChapterID) {
			continue
		}
		matched = append(matched, q)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := len(matched)
	offset := (f.Page - 1) * f.Size
	if offset > total {
		offset = total
	}
	end := offset + f.Size
	if end > total {
		end = total
	}
	out := make([]domain.Quiz, 0, end-offset)
	for _, q := range matched[offset:end] {
		out = append(out, *s.loadQuizLocked(q))
	}
	return out, total, nil
}

func (s *Store) OpenQuizzes(ctx context.Context, now time.Time) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Quiz, 0)
	for _, q := range s.quizzes {
		if q.EndTime.UTC().Before(now.UTC()) {
			continue
		}
		out = append(out, *s.loadQuizLocked(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (s *Store) SearchQuizzes(ctx context.Context, q string, limit int) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(q)
	out := make([]domain.Quiz, 0)
	for _, quiz := range s.quizzes {
		if len(out) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(quiz.Title), needle) {
			out = append(out, *s.loadQuizLocked(quiz))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) QuizzesByID(ctx context.Context, ids []int64) (map[int64]*domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*domain.Quiz, len(ids))
	for _, id := range ids {
		if q, ok := s.quizzes[id]; ok {
			out[id] = s.loadQuizLocked(q)
		}
	}
	return out, nil
}

func (s *Store) QuizzesCreatedSince(ctx context.Context, t time.Time) ([]domain.Quiz, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Quiz, 0)
	for _, q := range s.quizzes {
		if q.CreatedAt.Before(t) {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// loadQuizLocked returns a copy of the quiz with chapters, questions and
// options attached, mirroring the relation loading the SQL store does.
func (s *Store) loadQuizLocked(q *domain.Quiz) *domain.Quiz {
	clone := *q
	clone.Chapters = nil
	for _, cid := range s.quizChapters[q.ID] {
		if c, ok := s.chapters[cid]; ok {
			cc := *c
			clone.Chapters = append(clone.Chapters, &cc)
		}
	}
	clone.Questions = nil
	for _, question := range s.sortedQuestions(q.ID) {
		clone.Questions = append(clone.Questions, s.loadQuestionLocked(question))
	}
	return &clone
}

// --- questions ---

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question, optionTexts []string, correctIdx []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.nextid()

	optionIDs := make([]int64, 0, len(optionTexts))
	for _, text := range optionTexts {
		opt := &domain.Option{ID: s.nextid(), QuestionID: q.ID, Text: text}
		s.options[opt.ID] = opt
		optionIDs = append(optionIDs, opt.ID)
	}
	q.CorrectOptions = make([]int64, 0, len(correctIdx))
	for _, idx := range correctIdx {
		q.CorrectOptions = append(q.CorrectOptions, optionIDs[idx])
	}

	clone := *q
	clone.Options = nil
	s.questions[q.ID] = &clone
	return nil
}

func (s *Store) UpdateQuestion(ctx context.Context, q *domain.Question, optionTexts []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[q.ID]; !ok {
		return domain.ErrQuestionNotFound
	}
	if optionTexts != nil {
		for oid, opt := range s.options {
			if opt.QuestionID == q.ID {
				delete(s.options, oid)
			}
		}
		for _, text := range optionTexts {
			opt := &domain.Option{ID: s.nextid(), QuestionID: q.ID, Text: text}
			s.options[opt.ID] = opt
		}
	}
	clone := *q
	clone.Options = nil
	s.questions[q.ID] = &clone
	return nil
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	s.deleteQuestionLocked(id)
	return nil
}

func (s *Store) deleteQuestionLocked(id int64) {
	delete(s.questions, id)
	for oid, opt := range s.options {
		if opt.QuestionID == id {
			delete(s.options, oid)
		}
	}
}

func (s *Store) QuestionByID(ctx context.Context, id int64) (*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return s.loadQuestionLocked(q), nil
}

func (s *Store) QuestionsByQuiz(ctx context.Context, quizID int64, page, size int) ([]domain.Question, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.sortedQuestions(quizID)
	total := len(all)
	offset := (page - 1) * size
	if offset > total {
		offset = total
	}
	end := offset + size
	if end > total {
		end = total
	}
	out := make([]domain.Question, 0, end-offset)
	for _, q := range all[offset:end] {
		out = append(out, *s.loadQuestionLocked(q))
	}
	return out, total, nil
}

func (s *Store) QuestionsByID(ctx context.Context, ids []int64) (map[int64]*domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]*domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out[id] = s.loadQuestionLocked(q)
		}
	}
	return out, nil
}

func (s *Store) QuestionCounts(ctx context.Context, ids []int64) (map[int64]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]int, len(ids))
	for _, id := range ids {
		out[id] = len(s.sortedQuestions(id))
	}
	return out, nil
}

func (s *Store) QuizTotals(ctx context.Context, ids []int64) (map[int64]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]float64, len(ids))
	for _, id := range ids {
		var total float64
		for _, q := range s.questions {
			if q.QuizID == id {
				total += q.Marks
			}
		}
		out[id] = total
	}
	return out, nil
}

func (s *Store) loadQuestionLocked(q *domain.Question) *domain.Question {
	clone := *q
	clone.CorrectOptions = append([]int64(nil), q.CorrectOptions...)
	clone.Options = nil
	optionIDs := make([]int64, 0)
	for id, opt := range s.options {
		if opt.QuestionID == q.ID {
			optionIDs = append(optionIDs, id)
		}
	}
	sort.Slice(optionIDs, func(i, j int) bool { return optionIDs[i] < optionIDs[j] })
	for _, id := range optionIDs {
		oc := *s.options[id]
		clone.Options = append(clone.Options, &oc)
	}
	return &clone
}

// --- attempts ---

func (s *Store) InsertIfAbsent(ctx context.Context, userID, quizID int64) (*domain.Attempt, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.attempts {
		if a.UserID == userID && a.QuizID == quizID {
			clone := *a
			return &clone, false, nil
		}
	}
	attempt := &domain.Attempt{
		ID:        s.nextid(),
		UserID:    userID,
		QuizID:    quizID,
		CreatedAt: time.Now().UTC(),
	}
	s.attempts[attempt.ID] = attempt
	clone := *attempt
	return &clone, true, nil
}

func (s *Store) AttemptByID(ctx context.Context, id int64) (*domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	clone := *a
	return &clone, nil
}

func (s *Store) FinishAttempt(ctx context.Context, id int64, score float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	at = at.UTC()
	a.Score = score
	a.SubmittedAt = &at
	return nil
}

func (s *Store) AttemptedQuizIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]struct{})
	for _, a := range s.attempts {
		if a.UserID == userID {
			out[a.QuizID] = struct{}{}
		}
	}
	return out, nil
}

func (s *Store) AttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsWhere(func(a *domain.Attempt) bool { return a.UserID == userID }), nil
}

func (s *Store) AttemptsByQuiz(ctx context.Context, quizID int64) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsWhere(func(a *domain.Attempt) bool { return a.QuizID == quizID }), nil
}

func (s *Store) AllAttempts(ctx context.Context) ([]domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsWhere(func(*domain.Attempt) bool { return true }), nil
}

func (s *Store) attemptsWhere(match func(*domain.Attempt) bool) []domain.Attempt {
	out := make([]domain.Attempt, 0)
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// --- reports ---

func (s *Store) ChapterNamesByQuiz(ctx context.Context, ids []int64) (map[int64][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64][]string, len(ids))
	for _, id := range ids {
		for _, cid := range s.quizChapters[id] {
			if c, ok := s.chapters[cid]; ok {
				out[id] = append(out[id], c.Name)
			}
		}
	}
	return out, nil
}

func (s *Store) SiteCounts(ctx context.Context) (domain.SiteStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SiteStats{
		TotalQuizzes:   len(s.quizzes),
		TotalQuestions: len(s.questions),
		TotalChapters:  len(s.chapters),
		TotalSubjects:  len(s.subjects),
		TotalUsers:     len(s.users),
	}, nil
}

func (s *Store) sortedUsers() []*domain.User {
	out := make([]*domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) sortedQuestions(quizID int64) []*domain.Question {
	out := make([]*domain.Question, 0)
	for _, q := range s.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
