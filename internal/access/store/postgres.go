package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"greengate/internal/access/models"
	id "greengate/pkg/domain"
)

// Postgres reads role assignments from the user_roles table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Grant(ctx context.Context, userID id.UserID, role models.Role) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID.String(), string(role),
	)
	if err != nil {
		return fmt.Errorf("granting role: %w", err)
	}
	return nil
}

func (s *Postgres) RolesFor(ctx context.Context, userID id.UserID) ([]models.Role, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT role FROM user_roles WHERE user_id = $1`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying roles: %w", err)
	}
	defer rows.Close()

	var roles []models.Role
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		role, err := models.ParseRole(raw)
		if err != nil {
			// Skip rows written by a newer schema rather than failing the
			// whole lookup.
			continue
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}
