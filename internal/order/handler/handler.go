package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"greengate/internal/order/models"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/platform/httputil"
	"greengate/pkg/requestcontext"
)

// Service defines the order operations the HTTP layer needs.
type Service interface {
	Place(ctx context.Context, userID id.UserID, items []models.Item) (*models.Order, error)
	Get(ctx context.Context, userID id.UserID, orderID id.OrderID) (*models.Order, error)
	List(ctx context.Context, userID id.UserID) ([]*models.Order, error)
}

// Handler wires order endpoints to the order service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts order endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/orders", h.HandlePlace)
	r.Get("/orders", h.HandleList)
	r.Get("/orders/{orderID}", h.HandleGet)
}

// PlaceRequest is the order submission payload.
type PlaceRequest struct {
	Items []models.Item `json:"items"`
}

// Validate implements the decode hook.
func (r *PlaceRequest) Validate() error {
	if err := models.ValidateItems(r.Items); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid order")
	}
	return nil
}

type orderResponse struct {
	ID             string        `json:"id"`
	PartnerOrderID string        `json:"partnerOrderId"`
	Status         models.Status `json:"status"`
	PaymentStatus  string        `json:"paymentStatus,omitempty"`
	TotalAmount    int64         `json:"totalAmount"`
	Items          []models.Item `json:"items"`
	CreatedAt      time.Time     `json:"createdAt"`
}

func toOrderResponse(order *models.Order) orderResponse {
	return orderResponse{
		ID:             order.ID.String(),
		PartnerOrderID: order.PartnerOrderID,
		Status:         order.Status,
		PaymentStatus:  order.PaymentStatus,
		TotalAmount:    order.TotalAmount,
		Items:          order.Items,
		CreatedAt:      order.CreatedAt,
	}
}

// HandlePlace handles POST /orders requests.
func (h *Handler) HandlePlace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	req, ok := httputil.DecodeAndPrepare[*PlaceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	order, err := h.service.Place(ctx, userID, req.Items)
	if err != nil {
		h.logger.WarnContext(ctx, "order placement refused",
			"request_id", requestID,
			"user_id", userID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "order placed",
		"request_id", requestID,
		"user_id", userID,
		"partner_order_id", order.PartnerOrderID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusCreated, toOrderResponse(order))
}

// HandleGet handles GET /orders/{orderID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	orderID, err := id.ParseOrderID(chi.URLParam(r, "orderID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid order id"))
		return
	}

	order, err := h.service.Get(ctx, userID, orderID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toOrderResponse(order))
}

// HandleList handles GET /orders requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	orders, err := h.service.List(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		out = append(out, toOrderResponse(order))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"orders": out})
}
