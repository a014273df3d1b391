package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"greengate/internal/order/models"
	id "greengate/pkg/domain"
	"greengate/pkg/platform/sentinel"
)

const orderColumns = `id, user_id, partner_order_id, status, payment_status, total_amount, items, created_at, updated_at`

// Postgres persists order mirrors. Items are stored as a JSONB document
// since lines are only ever read back as a unit.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO orders (id, user_id, partner_order_id, status, payment_status, total_amount, items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID.String(), order.UserID.String(), order.PartnerOrderID,
		string(order.Status), order.PaymentStatus, order.TotalAmount,
		items, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "inserting order")
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("encoding order items: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = $2, payment_status = $3, total_amount = $4, items = $5, updated_at = $6
		WHERE id = $1`,
		order.ID.String(), string(order.Status), order.PaymentStatus,
		order.TotalAmount, items, order.UpdatedAt,
	)
	if err != nil {
		return translateError(err, "updating order")
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, orderID id.OrderID) (*models.Order, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID.String())
	return scanOrder(row)
}

func (s *Postgres) ListByUser(ctx context.Context, userID id.UserID) ([]*models.Order, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID.String())
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orders: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order      models.Order
		rawID      string
		rawUserID  string
		rawStatus  string
		rawItems   []byte
	)
	err := row.Scan(&rawID, &rawUserID, &order.PartnerOrderID, &rawStatus,
		&order.PaymentStatus, &order.TotalAmount, &rawItems,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	if order.ID, err = id.ParseOrderID(rawID); err != nil {
		return nil, fmt.Errorf("stored order id: %w", err)
	}
	if order.UserID, err = id.ParseUserID(rawUserID); err != nil {
		return nil, fmt.Errorf("stored user id: %w", err)
	}
	order.Status = models.Status(rawStatus)
	if err := json.Unmarshal(rawItems, &order.Items); err != nil {
		return nil, fmt.Errorf("decoding order items: %w", err)
	}
	return &order, nil
}

func translateError(err error, op string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
