// Package contact handles contact form submissions. The form is unauthenticated
// and therefore throttled per client IP and per submitted address.
package contact

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	ratemodels "greengate/internal/ratelimit/models"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/email"
)

// Limiter counts one request against a key's fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string) (ratemodels.Result, error)
}

// Notifier acknowledges submissions.
type Notifier interface {
	SendContactAck(ctx context.Context, to, firstName string) error
}

// Submission is one contact form entry.
type Submission struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Validate implements the decode hook used by the HTTP layer.
func (s *Submission) Validate() error {
	if !email.Valid(s.Email) {
		return fmt.Errorf("invalid email address")
	}
	if strings.TrimSpace(s.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if len(s.Message) > 10_000 {
		return fmt.Errorf("message is too long")
	}
	return nil
}

type Service struct {
	limiter  Limiter
	notifier Notifier
	logger   *slog.Logger
}

func New(limiter Limiter, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{limiter: limiter, notifier: notifier, logger: logger}
}

// Submit throttles, records, and acknowledges one submission. Both the
// client IP and the submitted address count against the window, so rotating
// one of the two does not evade the limit.
func (s *Service) Submit(ctx context.Context, clientIP string, sub Submission) (ratemodels.Result, error) {
	addr := email.Normalize(sub.Email)

	result, err := s.allow(ctx, "contact:ip:"+clientIP)
	if err != nil {
		return result, err
	}
	result, err = s.allow(ctx, "contact:email:"+addr)
	if err != nil {
		return result, err
	}

	s.logger.InfoContext(ctx, "contact form submission",
		"email", addr,
		"subject", sub.Subject,
		"length", len(sub.Message),
	)

	firstName := sub.Name
	if firstName == "" {
		firstName, _ = email.DeriveNameFromEmail(addr)
	}
	if ackErr := s.notifier.SendContactAck(ctx, addr, firstName); ackErr != nil {
		// Acknowledgment is best effort; the submission already succeeded.
		s.logger.WarnContext(ctx, "contact acknowledgment failed", "error", ackErr)
	}
	return result, nil
}

func (s *Service) allow(ctx context.Context, key string) (ratemodels.Result, error) {
	result, err := s.limiter.Allow(ctx, key)
	if err != nil {
		// A broken limiter must not take the contact form down with it.
		s.logger.ErrorContext(ctx, "rate limit check failed, allowing request", "error", err)
		return ratemodels.Result{Allowed: true}, nil
	}
	if !result.Allowed {
		return result, dErrors.New(dErrors.CodeRateLimited, "too many submissions, please try again later")
	}
	return result, nil
}
