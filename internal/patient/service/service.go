package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	"greengate/internal/patient/models"
	"greengate/internal/platform/metrics"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/email"
	"greengate/pkg/platform/sentinel"
	"greengate/pkg/requestcontext"
)

// RecordStore is the persistence boundary for patient records.
type RecordStore interface {
	Create(ctx context.Context, record *models.Record) error
	Update(ctx context.Context, record *models.Record) error
	Upsert(ctx context.Context, record *models.Record) error
	FindByUserID(ctx context.Context, userID id.UserID) (*models.Record, error)
	DeleteByUserID(ctx context.Context, userID id.UserID) error
	ListPending(ctx context.Context) ([]*models.Record, error)
}

// PartnerProxy is the slice of the proxy this service uses.
type PartnerProxy interface {
	Invoke(ctx context.Context, action string, data map[string]any) (*partner.Envelope, error)
}

// Notifier sends transactional email side effects. Implementations must be
// safe to call best-effort; delivery failure never fails the triggering
// operation.
type Notifier interface {
	SendWelcome(ctx context.Context, to, firstName string) error
}

// RoleResolver reports role flags for a user, used for the admin bypass.
type RoleResolver interface {
	Resolve(ctx context.Context, userID id.UserID) (eligibility.RoleFlags, error)
}

// Service orchestrates patient registration, resync, and status reads.
type Service struct {
	store    RecordStore
	proxy    PartnerProxy
	roles    RoleResolver
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithNotifier attaches the transactional email sender.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics attaches shared metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New constructs a Service.
func New(store RecordStore, proxy PartnerProxy, roles RoleResolver, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, proxy: proxy, roles: roles, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRequest is the registration submission.
type RegisterRequest struct {
	UserID      id.UserID
	Email       string
	FirstName   string
	LastName    string
	CountryCode string
}

// RegisterResult carries the created record. Degraded is set when the
// partner accepted the client but a local write failed; the partner side is
// the source of truth and is never rolled back, so callers reconcile later
// through the sync worker.
type RegisterResult struct {
	Record   *models.Record
	Degraded bool
	Message  string
}

// partnerClient mirrors the fields the partner returns for a client.
type partnerClient struct {
	ClientID      string `json:"clientId"`
	KYCVerified   bool   `json:"kycVerified"`
	AdminApproval string `json:"adminApproval"`
	KYCLink       string `json:"kycLink"`
}

// Register submits a new patient to the partner and persists the resulting
// record. A partner outage does not lose the registration: a local-fallback
// record is created instead and flagged for resync.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if req.UserID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if !email.Valid(req.Email) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "a valid email is required")
	}
	if len(req.CountryCode) != 2 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "country_code must be a two-letter ISO code")
	}

	if existing, err := s.store.FindByUserID(ctx, req.UserID); err == nil && existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "patient registration already exists")
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient record")
	}

	first, last := req.FirstName, req.LastName
	if first == "" {
		first, last = email.DeriveNameFromEmail(req.Email)
	}

	now := requestcontext.Now(ctx)
	partnerClientID := ""
	kycLink := ""

	env, err := s.proxy.Invoke(ctx, "create-client", map[string]any{
		"email":       email.Normalize(req.Email),
		"firstName":   first,
		"lastName":    last,
		"countryCode": strings.ToUpper(req.CountryCode),
	})
	switch {
	case err == nil:
		var pc partnerClient
		if jsonErr := json.Unmarshal(env.Data, &pc); jsonErr != nil || pc.ClientID == "" {
			return nil, dErrors.New(dErrors.CodeInternal, "partner returned an unusable client payload")
		}
		partnerClientID = pc.ClientID
		kycLink = pc.KYCLink
	case errors.Is(err, partner.ErrPartner):
		// A business rejection (duplicate, validation) is the caller's to fix.
		return nil, dErrors.New(dErrors.CodeBadRequest, env.Message)
	default:
		// Partner unreachable or misconfigured: keep the registration as a
		// local-fallback record so the patient can resync later.
		partnerClientID = models.LocalFallbackPrefix + id.NewRecordID().String()
		s.logger.WarnContext(ctx, "partner unavailable during registration, creating local fallback record",
			"user_id", req.UserID,
			"error", err,
		)
	}

	record, err := models.NewRecord(id.NewRecordID(), req.UserID, partnerClientID, req.CountryCode, email.Normalize(req.Email), now)
	if err != nil {
		return nil, err
	}
	record.FirstName = first
	record.LastName = last
	record.KYCLink = kycLink

	result := &RegisterResult{Record: record}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "patient registration already exists")
		}
		if record.IsLocalFallback() {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist patient record")
		}
		// The partner-side client exists; report degraded success instead of
		// rolling it back.
		s.logger.ErrorContext(ctx, "patient record write failed after partner accepted client",
			"user_id", req.UserID,
			"partner_client_id", partnerClientID,
			"error", err,
		)
		result.Degraded = true
		result.Message = "registration accepted by partner but not yet stored locally"
	}

	if s.metrics != nil {
		s.metrics.PatientsRegistered.Inc()
	}
	s.notifyWelcome(ctx, record)
	return result, nil
}

// Get returns the caller's record, or nil when registration has not been
// submitted.
func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.Record, error) {
	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient record")
	}
	return record, nil
}

// Status evaluates the caller's eligibility. Failures resolve to the most
// restrictive applicable state rather than an error so gates fail closed.
func (s *Service) Status(ctx context.Context, userID id.UserID) (eligibility.Result, *models.Record) {
	roles := eligibility.RoleFlags{}
	if s.roles != nil {
		resolved, err := s.roles.Resolve(ctx, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "role resolution failed, treating viewer as regular user",
				"user_id", userID,
				"error", err,
			)
		} else {
			roles = resolved
		}
	}

	record, err := s.Get(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "patient lookup failed, treating viewer as unregistered",
			"user_id", userID,
			"error", err,
		)
		record = nil
	}
	return eligibility.Evaluate(record, roles), record
}

// Resync recreates a record through the partner. Used when the record was
// created as a local fallback or under retired API credentials: the partner
// copy is deleted (best effort) and a fresh client is created.
func (s *Service) Resync(ctx context.Context, userID id.UserID) (*models.Record, error) {
	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no patient registration to resync")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient record")
	}

	if !record.IsLocalFallback() {
		// Best effort: the old partner client may live under credentials we
		// no longer hold, in which case the delete fails and is ignored.
		if _, err := s.proxy.Invoke(ctx, "delete-client", map[string]any{"clientId": record.PartnerClientID}); err != nil {
			s.logger.WarnContext(ctx, "could not delete partner client during resync",
				"partner_client_id", record.PartnerClientID,
				"error", err,
			)
		}
	}

	env, err := s.proxy.Invoke(ctx, "create-client", map[string]any{
		"email":       record.Email,
		"firstName":   record.FirstName,
		"lastName":    record.LastName,
		"countryCode": record.CountryCode,
	})
	if err != nil {
		if errors.Is(err, partner.ErrPartner) {
			return nil, dErrors.New(dErrors.CodeBadRequest, env.Message)
		}
		return nil, dErrors.New(dErrors.CodeUnavailable, "fulfilment partner is unavailable, try again later")
	}

	var pc partnerClient
	if err := json.Unmarshal(env.Data, &pc); err != nil || pc.ClientID == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "partner returned an unusable client payload")
	}

	now := requestcontext.Now(ctx)
	record.PartnerClientID = pc.ClientID
	record.ApplyVerification(pc.KYCVerified, pc.KYCLink, now)
	if pc.AdminApproval != "" {
		if approval, err := models.ParseAdminApproval(pc.AdminApproval); err == nil {
			_ = record.ApplyApproval(approval, now)
		}
	}

	if err := s.store.Upsert(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist resynced patient record")
	}
	return record, nil
}

// RefreshVerification pulls the partner's verification state for one record
// and persists it. Called by the sync worker; a failure leaves the stored
// record untouched.
func (s *Service) RefreshVerification(ctx context.Context, record *models.Record) error {
	env, err := s.proxy.Invoke(ctx, "get-client", map[string]any{"clientId": record.PartnerClientID})
	if err != nil {
		return fmt.Errorf("fetch partner client %s: %w", record.PartnerClientID, err)
	}

	var pc partnerClient
	if err := json.Unmarshal(env.Data, &pc); err != nil {
		return fmt.Errorf("decode partner client %s: %w", record.PartnerClientID, err)
	}

	now := requestcontext.Now(ctx)
	record.ApplyVerification(pc.KYCVerified, pc.KYCLink, now)
	if pc.AdminApproval != "" {
		if approval, err := models.ParseAdminApproval(pc.AdminApproval); err == nil {
			_ = record.ApplyApproval(approval, now)
		}
	}

	if err := s.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist verification state for %s: %w", record.PartnerClientID, err)
	}
	return nil
}

// ListPending exposes the sync worker's work set.
func (s *Service) ListPending(ctx context.Context) ([]*models.Record, error) {
	return s.store.ListPending(ctx)
}

// SetApproval records an operator approval decision for a patient.
func (s *Service) SetApproval(ctx context.Context, userID id.UserID, approval models.AdminApproval) (*models.Record, error) {
	record, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "lookup patient record")
	}
	if err := record.ApplyApproval(approval, requestcontext.Now(ctx)); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, record); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist approval")
	}
	return record, nil
}

func (s *Service) notifyWelcome(ctx context.Context, record *models.Record) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendWelcome(ctx, record.Email, record.FirstName); err != nil {
		s.logger.WarnContext(ctx, "welcome email failed",
			"user_id", record.UserID,
			"error", err,
		)
	}
}
