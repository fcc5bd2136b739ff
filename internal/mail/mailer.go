package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Attachment is a file shipped with a message.
type Attachment struct {
	Name    string
	Content []byte
}

// Mailer delivers transactional mail. Implementations must be safe for
// concurrent use.
type Mailer interface {
	Send(ctx context.Context, toEmail, toName, subject, htmlBody string, attachments ...Attachment) error
}

// APIClient sends mail through an HTTP transactional-mail API.
type APIClient struct {
	endpoint    string
	apiKey      string
	senderEmail string
	senderName  string
	http        *http.Client
}

// NewAPIClient builds a mailer against the given API endpoint. Returns
// nil when the API key is missing, so callers can fall back to Nop.
func NewAPIClient(endpoint, apiKey, senderEmail, senderName string) *APIClient {
	if apiKey == "" || senderEmail == "" {
		return nil
	}
	return &APIClient{
		endpoint:    endpoint,
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

type apiPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
	Attachments []apiAttachment     `json:"attachment,omitempty"`
}

type apiAttachment struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (c *APIClient) Send(ctx context.Context, toEmail, toName, subject, htmlBody string, attachments ...Attachment) error {
	payload := apiPayload{
		Sender:      map[string]string{"email": c.senderEmail, "name": c.senderName},
		To:          []map[string]string{{"email": toEmail, "name": toName}},
		Subject:     subject,
		HTMLContent: htmlBody,
	}
	for _, a := range attachments {
		payload.Attachments = append(payload.Attachments, apiAttachment{
			Name:    a.Name,
			Content: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail api returned %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// Nop logs instead of sending; used when no mail API is configured.
type Nop struct{}

func (Nop) Send(_ context.Context, toEmail, _, subject string, _ string, _ ...Attachment) error {
	log.Printf("mail disabled, dropping %q to %s", subject, toEmail)
	return nil
}
