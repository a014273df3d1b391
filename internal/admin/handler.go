// Package admin exposes staff-only endpoints: approval management, the
// pending verification queue, and the raw partner action dispatch used for
// operational repair.
package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	patientmodels "greengate/internal/patient/models"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/platform/httputil"
	"greengate/pkg/requestcontext"
)

// PatientService is the slice of patient operations staff drive.
type PatientService interface {
	ListPending(ctx context.Context) ([]*patientmodels.Record, error)
	SetApproval(ctx context.Context, userID id.UserID, approval patientmodels.AdminApproval) (*patientmodels.Record, error)
}

// PartnerProxy invokes partner actions.
type PartnerProxy interface {
	Invoke(ctx context.Context, action string, payload map[string]any) (*partner.Envelope, error)
}

// RoleResolver resolves a user's role flags.
type RoleResolver interface {
	Resolve(ctx context.Context, userID id.UserID) (eligibility.RoleFlags, error)
}

// Handler wires staff endpoints.
type Handler struct {
	patients PatientService
	proxy    PartnerProxy
	roles    RoleResolver
	logger   *slog.Logger
}

func New(patients PatientService, proxy PartnerProxy, roles RoleResolver, logger *slog.Logger) *Handler {
	return &Handler{patients: patients, proxy: proxy, roles: roles, logger: logger}
}

// Register mounts staff endpoints on the router. Every route requires the
// admin role; role resolution failures deny access.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Get("/admin/patients/pending", h.HandlePending)
		r.Post("/admin/patients/{userID}/approval", h.HandleApproval)
		r.Post("/partner/invoke", h.HandleInvoke)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		userID := requestcontext.UserID(ctx)
		if userID.IsNil() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
			return
		}
		flags, err := h.roles.Resolve(ctx, userID)
		if err != nil {
			h.logger.ErrorContext(ctx, "role resolution failed, denying staff access",
				"user_id", userID, "error", err)
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient privileges"))
			return
		}
		if !flags.IsAdmin {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "insufficient privileges"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandlePending handles GET /admin/patients/pending requests.
func (h *Handler) HandlePending(w http.ResponseWriter, r *http.Request) {
	records, err := h.patients.ListPending(r.Context())
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, ""))
		return
	}

	type pendingEntry struct {
		UserID          string `json:"userId"`
		PartnerClientID string `json:"partnerClientId"`
		Email           string `json:"email"`
		KYCVerified     bool   `json:"kycVerified"`
		AdminApproval   string `json:"adminApproval"`
	}
	out := make([]pendingEntry, 0, len(records))
	for _, record := range records {
		out = append(out, pendingEntry{
			UserID:          record.UserID.String(),
			PartnerClientID: record.PartnerClientID,
			Email:           record.Email,
			KYCVerified:     record.IsKYCVerified,
			AdminApproval:   string(record.AdminApproval),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pending": out})
}

// ApprovalRequest sets a patient's approval state.
type ApprovalRequest struct {
	Approval string `json:"approval"`
}

// Validate implements the decode hook.
func (r *ApprovalRequest) Validate() error {
	if _, err := patientmodels.ParseAdminApproval(r.Approval); err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "approval must be PENDING, VERIFIED or REJECTED")
	}
	return nil
}

// HandleApproval handles POST /admin/patients/{userID}/approval requests.
func (h *Handler) HandleApproval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid user id"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*ApprovalRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	approval, _ := patientmodels.ParseAdminApproval(req.Approval)

	record, err := h.patients.SetApproval(ctx, userID, approval)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "patient approval updated",
		"request_id", requestID,
		"user_id", userID,
		"approval", approval,
		"actor_id", requestcontext.UserID(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"userId":        record.UserID.String(),
		"adminApproval": string(record.AdminApproval),
	})
}

// InvokeRequest is the generic partner dispatch payload.
type InvokeRequest struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

// Validate implements the decode hook.
func (r *InvokeRequest) Validate() error {
	if !partner.KnownAction(r.Action) {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown partner action")
	}
	return nil
}

// HandleInvoke handles POST /partner/invoke requests. The envelope is passed
// through as normalized, so staff tooling sees exactly what services see.
func (h *Handler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[*InvokeRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	env, err := h.proxy.Invoke(ctx, req.Action, req.Payload)
	if err != nil {
		switch {
		case errors.Is(err, partner.ErrPartner):
			httputil.WriteJSON(w, http.StatusBadGateway, env)
		case errors.Is(err, partner.ErrConfig):
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, ""))
		default:
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "partner network unreachable"))
		}
		return
	}
	httputil.WriteJSON(w, http.StatusOK, env)
}
