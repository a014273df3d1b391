// Package shop exposes the product catalogue, gated by jurisdiction. In
// restricted jurisdictions product data is withheld until the caller is an
// authenticated, eligible patient.
package shop

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"greengate/internal/eligibility"
	"greengate/internal/partner"
	patientmodels "greengate/internal/patient/models"
	"greengate/internal/region"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/platform/httputil"
	"greengate/pkg/requestcontext"
)

// PartnerProxy invokes partner actions.
type PartnerProxy interface {
	Invoke(ctx context.Context, action string, payload map[string]any) (*partner.Envelope, error)
}

// EligibilityGate answers whether a user may see restricted product data.
type EligibilityGate interface {
	Status(ctx context.Context, userID id.UserID) (eligibility.Result, *patientmodels.Record)
}

// Handler wires catalogue and region endpoints.
type Handler struct {
	gate    *region.Gate
	proxy   PartnerProxy
	patient EligibilityGate
	logger  *slog.Logger
}

func New(gate *region.Gate, proxy PartnerProxy, patient EligibilityGate, logger *slog.Logger) *Handler {
	return &Handler{gate: gate, proxy: proxy, patient: patient, logger: logger}
}

// Register mounts catalogue and region endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/region", h.HandleRegion)
	r.Get("/shop/products", h.HandleProducts)
	r.Get("/shop/products/{strainID}", h.HandleProduct)
}

// HandleRegion handles GET /region requests. The simulate query parameter
// overrides the host-derived jurisdiction outside production.
func (h *Handler) HandleRegion(w http.ResponseWriter, r *http.Request) {
	resolution := h.gate.Resolve(r.Host, r.URL.Query().Get("simulate"))
	httputil.WriteJSON(w, http.StatusOK, resolution)
}

// HandleProducts handles GET /shop/products requests.
func (h *Handler) HandleProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resolution, ok := h.checkRegion(w, r)
	if !ok {
		return
	}

	payload := map[string]any{}
	q := r.URL.Query()
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		payload["page"] = page
	}
	if take, err := strconv.Atoi(q.Get("take")); err == nil && take > 0 {
		payload["take"] = take
	}
	if orderBy := q.Get("orderBy"); orderBy != "" {
		payload["orderBy"] = orderBy
	}

	env, err := h.proxy.Invoke(ctx, "get-strains", payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "catalogue fetch failed",
			"request_id", requestcontext.RequestID(ctx),
			"region", resolution.CountryCode,
			"error", err,
		)
		httputil.WriteError(w, partnerError(err, env))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": env.Data})
}

// HandleProduct handles GET /shop/products/{strainID} requests.
func (h *Handler) HandleProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if _, ok := h.checkRegion(w, r); !ok {
		return
	}

	strainID := chi.URLParam(r, "strainID")
	if strainID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "missing strain id"))
		return
	}

	env, err := h.proxy.Invoke(ctx, "get-strain", map[string]any{"strainId": strainID})
	if err != nil {
		httputil.WriteError(w, partnerError(err, env))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"data": env.Data})
}

// checkRegion enforces the jurisdiction gate for catalogue routes. Returns
// ok=false after writing the refusal.
func (h *Handler) checkRegion(w http.ResponseWriter, r *http.Request) (region.Resolution, bool) {
	ctx := r.Context()
	resolution := h.gate.Resolve(r.Host, r.URL.Query().Get("simulate"))

	if resolution.Status != region.StatusOperational {
		httputil.WriteJSON(w, http.StatusForbidden, map[string]any{
			"error":  "region_unavailable",
			"region": resolution,
		})
		return resolution, false
	}

	if h.gate.RequiresPatientGate(resolution.CountryCode) {
		userID := requestcontext.UserID(ctx)
		if userID.IsNil() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "sign in to browse products in your region"))
			return resolution, false
		}
		result, _ := h.patient.Status(ctx, userID)
		if !result.Eligible() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, result.Message))
			return resolution, false
		}
	}
	return resolution, true
}

func partnerError(err error, env *partner.Envelope) error {
	if env != nil && env.Message != "" {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, env.Message)
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "the dispensary network is unreachable, please try again")
}
