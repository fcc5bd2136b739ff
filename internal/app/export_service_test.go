package app_test

import (
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"testing"

	"quizmaster-service/internal/app"
	"quizmaster-service/internal/domain"
	"quizmaster-service/internal/mail"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

type sentMail struct {
	To          string
	Subject     string
	Body        string
	Attachments []mail.Attachment
}

func (m *recordingMailer) Send(_ context.Context, toEmail, _ string, subject, htmlBody string, attachments ...mail.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: toEmail, Subject: subject, Body: htmlBody, Attachments: attachments})
	return nil
}

func TestUserAttemptsCSV(t *testing.T) {
	ctx := context.Background()
	f := newStatsFixture(t)
	exports := app.NewExportService(f.store, f.store, &recordingMailer{})

	f.attempt(t, f.userIDs[0], f.mathID, 7)

	data, err := exports.UserAttemptsCSV(ctx, f.userIDs[0])
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header plus one row, got %d", len(rows))
	}
	if rows[0][0] != "Quiz ID" || rows[1][3] != "7" {
		t.Fatalf("unexpected csv %v", rows)
	}
}

func TestAllAttemptsCSVResolvesLabels(t *testing.T) {
	ctx := context.Background()
	f := newStatsFixture(t)
	exports := app.NewExportService(f.store, f.store, &recordingMailer{})

	f.attempt(t, f.userIDs[0], f.mathID, 5)
	f.attempt(t, f.userIDs[1], f.histID, 3)

	data, err := exports.AllAttemptsCSV(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(rows))
	}
	if rows[1][1] != "Alice" || rows[1][2] != "Algebra" || rows[1][3] != "Mathematics" {
		t.Fatalf("unexpected first row %v", rows[1])
	}
}

func TestEmailAllAttempts(t *testing.T) {
	ctx := context.Background()
	f := newStatsFixture(t)
	mailer := &recordingMailer{}
	exports := app.NewExportService(f.store, f.store, mailer)

	admin := &domain.User{Email: "admin@example.com", FullName: "Admin", Role: domain.RoleAdmin}
	if err := f.store.CreateUser(ctx, admin); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	f.attempt(t, f.userIDs[0], f.mathID, 5)

	if err := exports.EmailAllAttempts(ctx, admin.ID); err != nil {
		t.Fatalf("email export: %v", err)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(mailer.sent))
	}
	msg := mailer.sent[0]
	if msg.To != "admin@example.com" || len(msg.Attachments) != 1 {
		t.Fatalf("unexpected mail %+v", msg)
	}
	if msg.Attachments[0].Name != "all_users_performance.csv" || len(msg.Attachments[0].Content) == 0 {
		t.Fatalf("unexpected attachment %+v", msg.Attachments[0])
	}
}
