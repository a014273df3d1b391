package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"greengate/internal/eligibility"
	"greengate/internal/patient/models"
	"greengate/internal/patient/service"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/email"
	"greengate/pkg/platform/httputil"
	"greengate/pkg/requestcontext"
)

// Service defines the patient operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, req service.RegisterRequest) (*service.RegisterResult, error)
	Status(ctx context.Context, userID id.UserID) (eligibility.Result, *models.Record)
	Resync(ctx context.Context, userID id.UserID) (*models.Record, error)
}

// Handler wires patient endpoints to the patient service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts patient endpoints on the router. All routes require an
// authenticated caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/patients/register", h.HandleRegister)
	r.Get("/patients/me", h.HandleMe)
	r.Post("/patients/resync", h.HandleResync)
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	CountryCode string `json:"countryCode"`
}

// Validate implements the decode hook.
func (r *RegisterRequest) Validate() error {
	if !email.Valid(r.Email) {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid email address")
	}
	if len(r.CountryCode) != 2 {
		return dErrors.New(dErrors.CodeInvalidInput, "country code must be two letters")
	}
	return nil
}

// recordResponse is the client-facing view of a patient record.
type recordResponse struct {
	ID              string `json:"id"`
	PartnerClientID string `json:"partnerClientId"`
	CountryCode     string `json:"countryCode"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	KYCVerified     bool   `json:"kycVerified"`
	AdminApproval   string `json:"adminApproval"`
	KYCLink         string `json:"kycLink,omitempty"`
	LocalFallback   bool   `json:"localFallback,omitempty"`
}

func toRecordResponse(record *models.Record) recordResponse {
	return recordResponse{
		ID:              record.ID.String(),
		PartnerClientID: record.PartnerClientID,
		CountryCode:     record.CountryCode,
		Email:           record.Email,
		FirstName:       record.FirstName,
		LastName:        record.LastName,
		KYCVerified:     record.IsKYCVerified,
		AdminApproval:   string(record.AdminApproval),
		KYCLink:         record.KYCLink,
		LocalFallback:   record.IsLocalFallback(),
	}
}

// HandleRegister handles POST /patients/register requests.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*RegisterRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Register(ctx, service.RegisterRequest{
		UserID:      userID,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "patient registration failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "patient registered",
		"request_id", requestID,
		"user_id", userID,
		"local_fallback", result.Record.IsLocalFallback(),
		"degraded", result.Degraded,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, map[string]any{
		"record":   toRecordResponse(result.Record),
		"degraded": result.Degraded,
		"message":  result.Message,
	})
}

// HandleMe handles GET /patients/me requests. The response always carries an
// eligibility block; the record block is null for unregistered users.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	result, record := h.service.Status(ctx, userID)

	body := map[string]any{
		"eligibility": map[string]any{
			"status":      result.Status,
			"canCheckout": result.CanCheckout,
			"message":     result.Message,
		},
	}
	if record != nil {
		body["record"] = toRecordResponse(record)
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

// HandleResync handles POST /patients/resync requests.
func (h *Handler) HandleResync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	record, err := h.service.Resync(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "patient resync failed",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"record": toRecordResponse(record),
	})
}
