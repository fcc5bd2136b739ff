package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"strconv"
	"strings"

	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/mail"
)

// ExportService renders attempt history as CSV and optionally mails it.
type ExportService struct {
	reports ReportStore
	users   UserStore
	mailer  mail.Mailer
}

func NewExportService(reports ReportStore, users UserStore, mailer mail.Mailer) *ExportService {
	return &ExportService{reports: reports, users: users, mailer: mailer}
}

// UserAttemptsCSV renders one user's attempt history.
func (s *ExportService) UserAttemptsCSV(ctx context.Context, userID int64) ([]byte, error) {
	attempts, err := s.reports.AttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	quizIDs := uniqueQuizIDs(attempts)
	chapters, err := s.reports.ChapterNamesByQuiz(ctx, quizIDs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"Quiz ID", "Chapters", "Date of Quiz", "Score"})
	for _, a := range attempts {
		_ = w.Write([]string{
			strconv.FormatInt(a.QuizID, 10),
			strings.Join(chapters[a.QuizID], ", "),
			a.CreatedAt.UTC().Format("2006-01-02"),
			strconv.FormatFloat(a.Score, 'f', -1, 64),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// AllAttemptsCSV renders every user's attempts for the admin export.
func (s *ExportService) AllAttemptsCSV(ctx context.Context) ([]byte, error) {
	attempts, err := s.reports.AllAttempts(ctx)
	if err != nil {
		return nil, err
	}

	quizIDs := uniqueQuizIDs(attempts)
	quizzes, err := s.reports.QuizzesByID(ctx, quizIDs)
	if err != nil {
		return nil, err
	}
	subjectIDs := make([]int64, 0, len(quizzes))
	for _, quiz := range quizzes {
		subjectIDs = append(subjectIDs, quiz.SubjectID)
	}
	subjects, err := s.reports.SubjectsByID(ctx, subjectIDs)
	if err != nil {
		return nil, err
	}
	chapters, err := s.reports.ChapterNamesByQuiz(ctx, quizIDs)
	if err != nil {
		return nil, err
	}
	userIDs := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		userIDs = append(userIDs, a.UserID)
	}
	users, err := s.reports.UsersByID(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"User ID", "User Name", "Quiz Title", "Subject", "Chapters", "Score", "Attempt Date"})
	for _, a := range attempts {
		userName := "N/A"
		if u, ok := users[a.UserID]; ok {
			userName = u.FullName
		}
		quizTitle, subjectName := "N/A", "N/A"
		if quiz, ok := quizzes[a.QuizID]; ok {
			quizTitle = quiz.Title
			if subject, ok := subjects[quiz.SubjectID]; ok {
				subjectName = subject.Name
			}
		}
		_ = w.Write([]string{
			strconv.FormatInt(a.UserID, 10),
			userName,
			quizTitle,
			subjectName,
			strings.Join(chapters[a.QuizID], ", "),
			strconv.FormatFloat(a.Score, 'f', -1, 64),
			a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// EmailAllAttempts builds the admin export and mails it to the requesting
// admin, mirroring the async export trigger.
func (s *ExportService) EmailAllAttempts(ctx context.Context, adminID int64) error {
	admin, err := s.users.UserByID(ctx, adminID)
	if err != nil {
		return err
	}
	data, err := s.AllAttemptsCSV(ctx)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, admin.Email, admin.FullName,
		"Export of All Users Quiz Performance",
		"<p>Attached is the CSV file for user performance.</p>",
		mail.Attachment{Name: "all_users_performance.csv", Content: data},
	)
}

func uniqueQuizIDs(attempts []domain.Attempt) []int64 {
	seen := make(map[int64]struct{}, len(attempts))
	ids := make([]int64, 0, len(attempts))
	for _, a := range attempts {
		if _, ok := seen[a.QuizID]; ok {
			continue
		}
		seen[a.QuizID] = struct{}{}
		ids = append(ids, a.QuizID)
	}
	return ids
}
