package store

import (
	"context"
	"sort"
	"sync"

	"greengate/internal/order/models"
	id "greengate/pkg/domain"
	"greengate/pkg/platform/sentinel"
)

// InMemory keeps orders in process memory for tests and partner-less
// deployments.
type InMemory struct {
	mu     sync.RWMutex
	orders map[id.OrderID]*models.Order
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[id.OrderID]*models.Order)}
}

func (s *InMemory) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *order
	cp.Items = append([]models.Item(nil), order.Items...)
	s.orders[order.ID] = &cp
	return nil
}

func (s *InMemory) Update(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; !exists {
		return sentinel.ErrNotFound
	}
	cp := *order
	cp.Items = append([]models.Item(nil), order.Items...)
	s.orders[order.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, orderID id.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *order
	cp.Items = append([]models.Item(nil), order.Items...)
	return &cp, nil
}

// ListByUser returns a user's orders newest first.
func (s *InMemory) ListByUser(_ context.Context, userID id.UserID) ([]*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Order
	for _, order := range s.orders {
		if order.UserID == userID {
			cp := *order
			cp.Items = append([]models.Item(nil), order.Items...)
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
