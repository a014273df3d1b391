// Package service resolves a user's role flags for eligibility decisions.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"greengate/internal/access/models"
	"greengate/internal/eligibility"
	id "greengate/pkg/domain"
)

// RoleStore is the persistence slice the resolver needs.
type RoleStore interface {
	RolesFor(ctx context.Context, userID id.UserID) ([]models.Role, error)
}

// Service turns stored role assignments into the flag pair the eligibility
// evaluator consumes.
type Service struct {
	store  RoleStore
	logger *slog.Logger
}

func New(store RoleStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Resolve returns the role flags for a user. A user with no assignments is a
// regular user with both flags false; that is the common case, not an error.
func (s *Service) Resolve(ctx context.Context, userID id.UserID) (eligibility.RoleFlags, error) {
	roles, err := s.store.RolesFor(ctx, userID)
	if err != nil {
		return eligibility.RoleFlags{}, fmt.Errorf("resolving roles: %w", err)
	}

	var flags eligibility.RoleFlags
	for _, role := range roles {
		if role.IsAdmin() {
			flags.IsAdmin = true
		}
		if role.IsModerator() {
			flags.IsModerator = true
		}
	}
	return flags, nil
}
