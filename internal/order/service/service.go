// Package service places and reads orders through the partner network,
// gated on patient eligibility.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"greengate/internal/eligibility"
	"greengate/internal/order/models"
	"greengate/internal/partner"
	patientmodels "greengate/internal/patient/models"
	"greengate/internal/platform/metrics"
	id "greengate/pkg/domain"
	dErrors "greengate/pkg/domain-errors"
	"greengate/pkg/platform/sentinel"
)

// OrderStore is the persistence slice the service needs.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error)
	ListByUser(ctx context.Context, userID id.UserID) ([]*models.Order, error)
}

// PartnerProxy invokes partner actions.
type PartnerProxy interface {
	Invoke(ctx context.Context, action string, payload map[string]any) (*partner.Envelope, error)
}

// EligibilityGate answers whether a user may check out right now.
type EligibilityGate interface {
	Status(ctx context.Context, userID id.UserID) (eligibility.Result, *patientmodels.Record)
}

type Service struct {
	store   OrderStore
	proxy   PartnerProxy
	gate    EligibilityGate
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store OrderStore, proxy PartnerProxy, gate EligibilityGate, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{store: store, proxy: proxy, gate: gate, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// partnerOrder mirrors the fields the partner returns for an order.
type partnerOrder struct {
	OrderID       string        `json:"orderId"`
	Status        string        `json:"status"`
	PaymentStatus string        `json:"paymentStatus"`
	TotalAmount   int64         `json:"totalAmount"`
	Items         []models.Item `json:"items"`
}

// Place submits an order for an eligible patient. Orders never go through
// when the evaluator says no, whatever the partner might accept.
func (s *Service) Place(ctx context.Context, userID id.UserID, items []models.Item) (*models.Order, error) {
	if err := models.ValidateItems(items); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid order")
	}

	result, record := s.gate.Status(ctx, userID)
	if !result.CanCheckout {
		return nil, dErrors.New(dErrors.CodeForbidden, result.Message)
	}
	if record == nil || record.IsLocalFallback() {
		// Admin bypass without a partner client still cannot order: there is
		// no client to bill against.
		return nil, dErrors.New(dErrors.CodeForbidden, "no dispensary client to order against, please re-sync your profile")
	}

	env, err := s.proxy.Invoke(ctx, "place-order", map[string]any{
		"clientId": record.PartnerClientID,
		"items":    items,
	})
	if err != nil {
		if errors.Is(err, partner.ErrPartner) {
			return nil, dErrors.New(dErrors.CodeBadRequest, env.Message)
		}
		s.logger.ErrorContext(ctx, "order placement failed upstream", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "the dispensary network is unreachable, please try again")
	}

	var po partnerOrder
	if err := json.Unmarshal(env.Data, &po); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "unexpected order response")
	}

	now := s.now().UTC()
	order := &models.Order{
		ID:             id.NewOrderID(),
		UserID:         userID,
		PartnerOrderID: po.OrderID,
		Status:         orderStatus(po.Status),
		PaymentStatus:  po.PaymentStatus,
		TotalAmount:    po.TotalAmount,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if len(po.Items) > 0 {
		order.Items = po.Items
	}

	if err := s.store.Create(ctx, order); err != nil {
		// The partner accepted the order; surface it even if the local
		// mirror could not be written.
		s.logger.ErrorContext(ctx, "order placed but local mirror failed",
			"partner_order_id", po.OrderID, "error", err)
	}
	if s.metrics != nil {
		s.metrics.OrdersPlaced.Inc()
	}
	return order, nil
}

// Get returns an order, refreshed from the partner when possible. Callers
// only ever see their own orders.
func (s *Service) Get(ctx context.Context, userID id.UserID, orderID id.OrderID) (*models.Order, error) {
	order, err := s.store.FindByID(ctx, orderID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "loading order")
	}
	if order.UserID != userID {
		// Indistinguishable from absence on purpose.
		return nil, dErrors.New(dErrors.CodeNotFound, "order not found")
	}

	env, err := s.proxy.Invoke(ctx, "get-order", map[string]any{"orderId": order.PartnerOrderID})
	if err != nil {
		// Stale local state beats an error for a read.
		s.logger.WarnContext(ctx, "order refresh failed, serving local mirror",
			"partner_order_id", order.PartnerOrderID, "error", err)
		return order, nil
	}

	var po partnerOrder
	if err := json.Unmarshal(env.Data, &po); err != nil {
		return order, nil
	}
	if po.Status != "" && orderStatus(po.Status) != order.Status {
		order.Status = orderStatus(po.Status)
		order.PaymentStatus = po.PaymentStatus
		order.UpdatedAt = s.now().UTC()
		if err := s.store.Update(ctx, order); err != nil {
			s.logger.WarnContext(ctx, "order status update failed", "error", err)
		}
	}
	return order, nil
}

// List returns the caller's order history, newest first, from the local
// mirror only.
func (s *Service) List(ctx context.Context, userID id.UserID) ([]*models.Order, error) {
	orders, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "listing orders")
	}
	return orders, nil
}

func orderStatus(raw string) models.Status {
	switch models.Status(raw) {
	case models.StatusPending, models.StatusConfirmed, models.StatusShipped,
		models.StatusDelivered, models.StatusCancelled:
		return models.Status(raw)
	default:
		return models.StatusPending
	}
}
