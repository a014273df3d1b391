// Package notify sends transactional email through an HTTP provider. With no
// API key configured every send degrades to a log line, which keeps local
// development and tests free of external calls.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"greengate/internal/platform/config"
)

// Mailer delivers transactional email. All sends are best effort from the
// caller's point of view; a failed notification never fails the operation
// that triggered it.
type Mailer struct {
	cfg    config.EmailConfig
	client *http.Client
	logger *slog.Logger
}

type Option func(*Mailer)

// WithHTTPClient overrides the default client, used by tests.
func WithHTTPClient(client *http.Client) Option {
	return func(m *Mailer) { m.client = client }
}

func New(cfg config.EmailConfig, logger *slog.Logger, opts ...Option) *Mailer {
	m := &Mailer{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SendWelcome greets a newly registered patient.
func (m *Mailer) SendWelcome(ctx context.Context, to, firstName string) error {
	name := firstName
	if name == "" {
		name = "there"
	}
	return m.send(ctx, to, "Welcome to Healing Buds",
		fmt.Sprintf("Hi %s,\n\nYour patient profile has been created. We'll let you know as soon as your verification is complete.", name))
}

// SendContactAck acknowledges a contact form submission.
func (m *Mailer) SendContactAck(ctx context.Context, to, firstName string) error {
	name := firstName
	if name == "" {
		name = "there"
	}
	return m.send(ctx, to, "We received your message",
		fmt.Sprintf("Hi %s,\n\nThanks for getting in touch. Our team will reply within two working days.", name))
}

// SendPrescriptionExpiry warns a patient their prescription is about to
// lapse.
func (m *Mailer) SendPrescriptionExpiry(ctx context.Context, to, firstName string, expiresAt time.Time) error {
	name := firstName
	if name == "" {
		name = "there"
	}
	return m.send(ctx, to, "Your prescription is expiring soon",
		fmt.Sprintf("Hi %s,\n\nYour prescription expires on %s. Renew it to keep ordering without interruption.",
			name, expiresAt.Format("2 January 2006")))
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

func (m *Mailer) send(ctx context.Context, to, subject, text string) error {
	if m.cfg.APIKey == "" {
		m.logger.InfoContext(ctx, "email delivery disabled, logging instead",
			"to", to, "subject", subject)
		return nil
	}

	body, err := json.Marshal(sendRequest{
		From:    m.cfg.From,
		To:      []string{to},
		Subject: subject,
		Text:    text,
	})
	if err != nil {
		return fmt.Errorf("encoding email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned %d", resp.StatusCode)
	}
	return nil
}
