package app

import (
	"context"
	"math"
	"sort"
	"time"

	"quizmaster-service/internal/domain"
)

// ReportStore is the read-only view over persisted attempts and the
// catalog rows needed to label them. Implementations batch-load: callers
// fetch lists once, build lookups, and compute in memory.
type ReportStore interface {
	AttemptsByUser(ctx context.Context, userID int64) ([]domain.Attempt, error)
	AttemptsByQuiz(ctx context.Context, quizID int64) ([]domain.Attempt, error)
	AllAttempts(ctx context.Context) ([]domain.Attempt, error)

	QuizzesByID(ctx context.Context, ids []int64) (map[int64]*domain.Quiz, error)
	SubjectsByID(ctx context.Context, ids []int64) (map[int64]*domain.Subject, error)
	UsersByID(ctx context.Context, ids []int64) (map[int64]*domain.User, error)
	// QuizTotals returns the derived total marks per quiz id.
	QuizTotals(ctx context.Context, ids []int64) (map[int64]float64, error)
	// QuestionCounts returns the number of questions per quiz id.
	QuestionCounts(ctx context.Context, ids []int64) (map[int64]int, error)
	ChapterNamesByQuiz(ctx context.Context, ids []int64) (map[int64][]string, error)

	SiteCounts(ctx context.Context) (domain.SiteStats, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	QuizzesCreatedSince(ctx context.Context, t time.Time) ([]domain.Quiz, error)
}

// StatsService derives ranks, averages and leaderboards from attempt
// history. Every query tolerates zero attempts by returning empty
// results, and runs against an eventually-consistent snapshot.
type StatsService struct {
	reports ReportStore
	now     func() time.Time
}

func NewStatsService(reports ReportStore) *StatsService {
	return &StatsService{reports: reports, now: time.Now}
}

// AttemptSummary is one row of a user's attempt history.
type AttemptSummary struct {
	AttemptID    int64   `json:"attemptId"`
	QuizID       int64   `json:"quizId"`
	QuizTitle    string  `json:"quizTitle"`
	Subject      string  `json:"subject"`
	NumQuestions int     `json:"numQuestions"`
	Score        float64 `json:"score"`
	TotalMarks   float64 `json:"totalMarks"`
	Date         string  `json:"date"`
}

// UserSummary bundles the charts shown on a user's dashboard.
type UserSummary struct {
	SubjectScores   []domain.SubjectAverage `json:"subjectScores"`
	MonthlyAttempts []domain.MonthlyCount   `json:"monthlyAttempts"`
}

// QuizLeaderboard orders a quiz's attempts by score descending. Ties are
// broken by earlier attempt first (created_at, then id); equal scores
// still receive distinct positional ranks.
func (s *StatsService) QuizLeaderboard(ctx context.Context, quizID int64) (domain.Leaderboard, error) {
	attempts, err := s.reports.AttemptsByQuiz(ctx, quizID)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	sortAttemptsByScore(attempts)

	userIDs := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		userIDs = append(userIDs, a.UserID)
	}
	users, err := s.reports.UsersByID(ctx, userIDs)
	if err != nil {
		return domain.Leaderboard{}, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(attempts))
	for i, a := range attempts {
		name := ""
		if u, ok := users[a.UserID]; ok {
			name = u.FullName
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:   a.UserID,
			FullName: name,
			Score:    a.Score,
			Rank:     i + 1,
		})
	}
	return domain.Leaderboard{QuizID: quizID, Entries: entries, UpdatedAt: s.now()}, nil
}

// Rank returns the 1-based position of the user's attempt in the quiz
// leaderboard. The bool is false when the user has no attempt.
func (s *StatsService) Rank(ctx context.Context, userID, quizID int64) (int, bool, error) {
	attempts, err := s.reports.AttemptsByQuiz(ctx, quizID)
	if err != nil {
		return 0, false, err
	}
	sortAttemptsByScore(attempts)
	for i, a := range attempts {
		if a.UserID == userID {
			return i + 1, true, nil
		}
	}
	return 0, false, nil
}

// SubjectAverages groups the user's attempts by quiz subject and returns
// the simple mean score per subject. Subjects without attempts are
// omitted, not zero-filled.
func (s *StatsService) SubjectAverages(ctx context.Context, userID int64) ([]domain.SubjectAverage, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return []domain.SubjectAverage{}, nil
	}

	quizzes, subjects, err := s.loadQuizSubjects(ctx, attempts)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, a := range attempts {
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			continue
		}
		subject, ok := subjects[quiz.SubjectID]
		if !ok {
			continue
		}
		sums[subject.Name] += a.Score
		counts[subject.Name]++
	}

	out := make([]domain.SubjectAverage, 0, len(sums))
	for name, sum := range sums {
		out = append(out, domain.SubjectAverage{Subject: name, AvgScore: sum / float64(counts[name])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// MonthlyActivity counts the user's attempts per calendar month,
// chronologically. Months with zero attempts are omitted.
func (s *StatsService) MonthlyActivity(ctx context.Context, userID int64) ([]domain.MonthlyCount, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, a := range attempts {
		counts[a.CreatedAt.UTC().Format("2006-01")]++
	}
	out := make([]domain.MonthlyCount, 0, len(counts))
	for month, n := range counts {
		out = append(out, domain.MonthlyCount{Month: month, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out, nil
}

// Summary bundles SubjectAverages and MonthlyActivity for the dashboard.
func (s *StatsService) Summary(ctx context.Context, userID int64) (UserSummary, error) {
	scores, err := s.SubjectAverages(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}
	monthly, err := s.MonthlyActivity(ctx, userID)
	if err != nil {
		return UserSummary{}, err
	}
	return UserSummary{SubjectScores: scores, MonthlyAttempts: monthly}, nil
}

// TopQuizzes returns the most-attempted quizzes across all users,
// descending, truncated to limit (default 5). Ties break by quiz id.
func (s *StatsService) TopQuizzes(ctx context.Context, limit int) ([]domain.QuizPopularity, error) {
	if limit <= 0 {
		limit = 5
	}
	attempts, err := s.reports.AllAttempts(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[int64]int)
	for _, a := range attempts {
		counts[a.QuizID]++
	}
	ids := make([]int64, 0, len(counts))
	for id := range counts {
		ids = append(ids, id)
	}
	quizzes, err := s.reports.QuizzesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]domain.QuizPopularity, 0, len(counts))
	for id, n := range counts {
		title := ""
		if quiz, ok := quizzes[id]; ok {
			title = quiz.Title
		}
		out = append(out, domain.QuizPopularity{QuizID: id, Title: title, Attempts: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Attempts != out[j].Attempts {
			return out[i].Attempts > out[j].Attempts
		}
		return out[i].QuizID < out[j].QuizID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SubjectAveragePercent averages score/total_marks*100 per subject across
// all attempts. Quizzes with zero total marks are excluded from their
// subject's average instead of dividing by zero.
func (s *StatsService) SubjectAveragePercent(ctx context.Context) ([]domain.SubjectPercent, error) {
	attempts, err := s.reports.AllAttempts(ctx)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return []domain.SubjectPercent{}, nil
	}

	quizzes, subjects, err := s.loadQuizSubjects(ctx, attempts)
	if err != nil {
		return nil, err
	}
	quizIDs := make([]int64, 0, len(quizzes))
	for id := range quizzes {
		quizIDs = append(quizIDs, id)
	}
	totals, err := s.reports.QuizTotals(ctx, quizIDs)
	if err != nil {
		return nil, err
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, a := range attempts {
		quiz, ok := quizzes[a.QuizID]
		if !ok {
			continue
		}
		total := totals[a.QuizID]
		if total == 0 {
			continue
		}
		subject, ok := subjects[quiz.SubjectID]
		if !ok {
			continue
		}
		sums[subject.Name] += a.Score / total * 100
		counts[subject.Name]++
	}

	out := make([]domain.SubjectPercent, 0, len(sums))
	for name, sum := range sums {
		out = append(out, domain.SubjectPercent{
			Subject:    name,
			AvgPercent: math.Round(sum/float64(counts[name])*100) / 100,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// Site returns the admin dashboard entity counts.
func (s *StatsService) Site(ctx context.Context) (domain.SiteStats, error) {
	return s.reports.SiteCounts(ctx)
}

// UserAttempts returns the user's attempt history enriched with quiz and
// subject labels and derived totals.
func (s *StatsService) UserAttempts(ctx context.Context, userID int64) ([]AttemptSummary, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return []AttemptSummary{}, nil
	}

	quizzes, subjects, err := s.loadQuizSubjects(ctx, attempts)
	if err != nil {
		return nil, err
	}
	quizIDs := make([]int64, 0, len(quizzes))
	for id := range quizzes {
		quizIDs = append(quizIDs, id)
	}
	totals, err := s.reports.QuizTotals(ctx, quizIDs)
	if err != nil {
		return nil, err
	}
	questionCounts, err := s.reports.QuestionCounts(ctx, quizIDs)
	if err != nil {
		return nil, err
	}

	out := make([]AttemptSummary, 0, len(attempts))
	for _, a := range attempts {
		row := AttemptSummary{
			AttemptID: a.ID,
			QuizID:    a.QuizID,
			Score:     a.Score,
			Date:      a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
		if quiz, ok := quizzes[a.QuizID]; ok {
			row.QuizTitle = quiz.Title
			if subject, ok := subjects[quiz.SubjectID]; ok {
				row.Subject = subject.Name
			}
		}
		row.TotalMarks = totals[a.QuizID]
		row.NumQuestions = questionCounts[a.QuizID]
		out = append(out, row)
	}
	return out, nil
}

// ScoreFilter narrows a user's attempt list. Zero values mean "no bound";
// Date matches the attempt's UTC calendar day (YYYY-MM-DD).
type ScoreFilter struct {
	Date     string
	MinScore *float64
	MaxScore *float64
}

// FilterScores returns the user's attempts matching the filter.
func (s *StatsService) FilterScores(ctx context.Context, userID int64, f ScoreFilter) ([]domain.Attempt, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Attempt, 0, len(attempts))
	for _, a := range attempts {
		if f.Date != "" && a.CreatedAt.UTC().Format("2006-01-02") != f.Date {
			continue
		}
		if f.MinScore != nil && a.Score < *f.MinScore {
			continue
		}
		if f.MaxScore != nil && a.Score > *f.MaxScore {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// loadQuizSubjects batch-loads the quizzes behind a set of attempts and
// the subjects behind those quizzes.
func (s *StatsService) loadQuizSubjects(ctx context.Context, attempts []domain.Attempt) (map[int64]*domain.Quiz, map[int64]*domain.Subject, error) {
	quizIDs := make([]int64, 0, len(attempts))
	seen := make(map[int64]struct{}, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		quizIDs = append(quizIDs, a.QuizID)
	}
	quizzes, err := s.reports.QuizzesByID(ctx, quizIDs)
	if err != nil {
		return nil, nil, err
	}

	subjectIDs := make([]int64, 0, len(quizzes))
	seenSubjects := make(map[int64]struct{}, len(quizzes))
	for _, quiz := range quizzes {
		if _, ok := seenSubjects[quiz.SubjectID]; ok {
			continue
		}
		seenSubjects[quiz.SubjectID] = struct{}{}
		subjectIDs = append(subjectIDs, quiz.SubjectID)
	}
	subjects, err := s.reports.SubjectsByID(ctx, subjectIDs)
	if err != nil {
		return nil, nil, err
	}
	return quizzes, subjects, nil
}

// sortAttemptsByScore orders attempts score descending; ties go to the
// earlier attempt (created_at, then id) so ranks are stable.
func sortAttemptsByScore(attempts []domain.Attempt) {
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].Score != attempts[j].Score {
			return attempts[i].Score > attempts[j].Score
		}
		if !attempts[i].CreatedAt.Equal(attempts[j].CreatedAt) {
			return attempts[i].CreatedAt.Before(attempts[j].CreatedAt)
		}
		return attempts[i].ID < attempts[j].ID
	})
}
