package store

import (
	"context"
	"sync"

	"greengate/internal/access/models"
	id "greengate/pkg/domain"
)

// InMemory keeps role assignments in process memory. Used in tests and in
// deployments without a database, where everyone is a regular user unless
// seeded.
type InMemory struct {
	mu    sync.RWMutex
	roles map[id.UserID][]models.Role
}

func NewInMemory() *InMemory {
	return &InMemory{roles: make(map[id.UserID][]models.Role)}
}

// Grant appends a role for a user. Granting the same role twice is harmless.
func (s *InMemory) Grant(_ context.Context, userID id.UserID, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles[userID] {
		if existing == role {
			return nil
		}
	}
	s.roles[userID] = append(s.roles[userID], role)
	return nil
}

// RolesFor returns the roles assigned to a user. No assignment means no
// roles, not an error.
func (s *InMemory) RolesFor(_ context.Context, userID id.UserID) ([]models.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Role(nil), s.roles[userID]...), nil
}
