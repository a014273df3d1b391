package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "greengate/pkg/domain"
	"greengate/pkg/platform/sentinel"

	"greengate/internal/patient/models"
)

// Postgres persists patient records in the patient_records table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs a Postgres-backed patient record store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const recordColumns = `id, user_id, partner_client_id, country_code, email, first_name, last_name, is_kyc_verified, admin_approval, kyc_link, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, record *models.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patient_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, recordArgs(record)...)
	if err != nil {
		return translateError("create patient record", err)
	}
	return nil
}

func (s *Postgres) Update(ctx context.Context, record *models.Record) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE patient_records
		SET partner_client_id = $2, country_code = $3, email = $4,
		    first_name = $5, last_name = $6, is_kyc_verified = $7,
		    admin_approval = $8, kyc_link = $9, updated_at = $10
		WHERE user_id = $1
	`, uuid.UUID(record.UserID), record.PartnerClientID, record.CountryCode, record.Email,
		record.FirstName, record.LastName, record.IsKYCVerified,
		string(record.AdminApproval), record.KYCLink, record.UpdatedAt)
	if err != nil {
		return translateError("update patient record", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// Upsert relies on the user_id uniqueness constraint for conflict handling;
// the partner is the source of truth so a conflicting row is overwritten.
func (s *Postgres) Upsert(ctx context.Context, record *models.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patient_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			partner_client_id = EXCLUDED.partner_client_id,
			country_code = EXCLUDED.country_code,
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_kyc_verified = EXCLUDED.is_kyc_verified,
			admin_approval = EXCLUDED.admin_approval,
			kyc_link = EXCLUDED.kyc_link,
			updated_at = EXCLUDED.updated_at
	`, recordArgs(record)...)
	if err != nil {
		return translateError("upsert patient record", err)
	}
	return nil
}

func (s *Postgres) FindByUserID(ctx context.Context, userID id.UserID) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM patient_records WHERE user_id = $1
	`, uuid.UUID(userID))
	return scanRecord(row)
}

func (s *Postgres) FindByPartnerClientID(ctx context.Context, partnerClientID string) (*models.Record, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recordColumns+` FROM patient_records WHERE partner_client_id = $1
	`, partnerClientID)
	return scanRecord(row)
}

func (s *Postgres) DeleteByUserID(ctx context.Context, userID id.UserID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM patient_records WHERE user_id = $1`, uuid.UUID(userID))
	if err != nil {
		return translateError("delete patient record", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) ListPending(ctx context.Context) ([]*models.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM patient_records
		WHERE partner_client_id NOT LIKE $1 || '%'
		  AND admin_approval <> 'REJECTED'
		  AND NOT (is_kyc_verified AND admin_approval = 'VERIFIED')
		ORDER BY updated_at ASC
	`, models.LocalFallbackPrefix)
	if err != nil {
		return nil, fmt.Errorf("list pending patient records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.Record, error) {
	var (
		record     models.Record
		recordUUID uuid.UUID
		userUUID   uuid.UUID
		approval   string
	)
	err := row.Scan(&recordUUID, &userUUID, &record.PartnerClientID, &record.CountryCode,
		&record.Email, &record.FirstName, &record.LastName, &record.IsKYCVerified,
		&approval, &record.KYCLink, &record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan patient record: %w", err)
	}
	record.ID = id.RecordID(recordUUID)
	record.UserID = id.UserID(userUUID)
	record.AdminApproval = models.AdminApproval(approval)
	return &record, nil
}

func recordArgs(record *models.Record) []any {
	return []any{
		uuid.UUID(record.ID), uuid.UUID(record.UserID), record.PartnerClientID,
		record.CountryCode, record.Email, record.FirstName, record.LastName,
		record.IsKYCVerified, string(record.AdminApproval), record.KYCLink,
		record.CreatedAt, record.UpdatedAt,
	}
}

// translateError maps unique violations to the conflict sentinel.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
