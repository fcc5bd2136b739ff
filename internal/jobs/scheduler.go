package jobs

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/mail"
)

// Scheduler runs the periodic mail jobs: daily new-quiz reminders and
// monthly activity reports.
type Scheduler struct {
	reports app.ReportStore
	stats   *app.StatsService
	mailer  mail.Mailer
	cron    *cron.Cron
	now     func() time.Time
}

func NewScheduler(reports app.ReportStore, stats *app.StatsService, mailer mail.Mailer) *Scheduler {
	return &Scheduler{
		reports: reports,
		stats:   stats,
		mailer:  mailer,
		cron:    cron.New(),
		now:     time.Now,
	}
}

// Start registers both jobs and launches the cron loop. Empty specs fall
// back to 6pm daily for reminders and midnight on the 1st for reports.
func (s *Scheduler) Start(remindersSpec, reportsSpec string) error {
	if remindersSpec == "" {
		remindersSpec = "0 18 * * *"
	}
	if reportsSpec == "" {
		reportsSpec = "0 0 1 * *"
	}
	if _, err := s.cron.AddFunc(remindersSpec, func() {
		if err := s.SendReminders(context.Background()); err != nil {
			log.Printf("reminder job: %v", err)
		}
	}); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(reportsSpec, func() {
		if err := s.SendMonthlyReports(context.Background()); err != nil {
			log.Printf("monthly report job: %v", err)
		}
	}); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// SendReminders mails every user about quizzes created in the last day.
func (s *Scheduler) SendReminders(ctx context.Context) error {
	quizzes, err := s.reports.QuizzesCreatedSince(ctx, s.now().UTC().Add(-24*time.Hour))
	if err != nil {
		return err
	}
	if len(quizzes) == 0 {
		return nil
	}
	users, err := s.reports.ListUsers(ctx)
	if err != nil {
		return err
	}

	var titles []string
	for _, quiz := range quizzes {
		titles = append(titles, quiz.Title)
	}
	body := fmt.Sprintf(
		"<p>New quizzes are waiting for you:</p><ul><li>%s</li></ul><p>Log in and take them before they close.</p>",
		strings.Join(titles, "</li><li>"),
	)

	for _, user := range users {
		if user.Role == domain.RoleAdmin {
			continue
		}
		if err := s.mailer.Send(ctx, user.Email, user.FullName, "New quizzes available", body); err != nil {
			log.Printf("reminder mail to %s: %v", user.Email, err)
		}
	}
	return nil
}

// SendMonthlyReports mails each user a summary of last month's attempts:
// count, average score, and per-quiz rank.
func (s *Scheduler) SendMonthlyReports(ctx context.Context) error {
	users, err := s.reports.ListUsers(ctx)
	if err != nil {
		return err
	}
	monthStart := s.now().UTC().AddDate(0, -1, 0)

	for _, user := range users {
		if user.Role == domain.RoleAdmin {
			continue
		}
		report, err := s.buildMonthlyReport(ctx, user.ID, monthStart)
		if err != nil {
			log.Printf("monthly report for %s: %v", user.Email, err)
			continue
		}
		if report == "" {
			continue
		}
		if err := s.mailer.Send(ctx, user.Email, user.FullName, "Your Monthly Activity Report", report); err != nil {
			log.Printf("monthly report mail to %s: %v", user.Email, err)
		}
	}
	return nil
}

func (s *Scheduler) buildMonthlyReport(ctx context.Context, userID int64, since time.Time) (string, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return "", err
	}
	recent := attempts[:0]
	for _, a := range attempts {
		if a.CreatedAt.UTC().Before(since) {
			continue
		}
		recent = append(recent, a)
	}
	if len(recent) == 0 {
		return "", nil
	}

	quizIDs := make([]int64, 0, len(recent))
	var totalScore float64
	for _, a := range recent {
		quizIDs = append(quizIDs, a.QuizID)
		totalScore += a.Score
	}
	quizzes, err := s.reports.QuizzesByID(ctx, quizIDs)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Monthly Activity Report</h2>")
	fmt.Fprintf(&b, "<p>Quizzes taken: %d<br>Average score: %.2f</p>", len(recent), totalScore/float64(len(recent)))
	b.WriteString("<table border=\"1\"><tr><th>Quiz</th><th>Score</th><th>Rank</th></tr>")
	for _, a := range recent {
		title := "N/A"
		if quiz, ok := quizzes[a.QuizID]; ok {
			title = quiz.Title
		}
		rankLabel := "-"
		if rank, ok, err := s.stats.Rank(ctx, userID, a.QuizID); err == nil && ok {
			rankLabel = fmt.Sprintf("%d", rank)
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td>%.2f</td><td>%s</td></tr>", title, a.Score, rankLabel)
	}
	b.WriteString("</table>")
	return b.String(), nil
}
