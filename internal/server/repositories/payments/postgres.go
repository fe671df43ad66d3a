package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/dbx"
	"github.com/secureshare/secureshare/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements payment storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a pending charge. A transfer can carry at most one payment;
// a duplicate is reported as common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (id, transfer_id, amount_minor_units, currency, provider_ref, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.TransferID, p.AmountMinorUnits, p.Currency,
		nullString(p.ProviderRef), string(p.Status))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByTransferID returns the charge linked to a transfer, or
// common.ErrNotFound when the transfer has none.
func (r *PostgresRepository) GetByTransferID(ctx context.Context, transferID string) (*models.Payment, error) {
	query := `
		SELECT id, transfer_id, amount_minor_units, currency, provider_ref, status, created_at, settled_at
		FROM payments WHERE transfer_id=$1
	`
	var (
		p           models.Payment
		providerRef sql.NullString
		settledAt   sql.NullTime
		status      string
	)
	err := r.db.QueryRowContext(ctx, query, transferID).Scan(
		&p.ID, &p.TransferID, &p.AmountMinorUnits, &p.Currency,
		&providerRef, &status, &p.CreatedAt, &settledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select payment: %w", err)
	}
	p.ProviderRef = providerRef.String
	p.Status = models.PaymentStatus(status)
	if settledAt.Valid {
		p.SettledAt = &settledAt.Time
	}
	return &p, nil
}

// AttachProviderRef links the provider's charge reference to the transfer's
// pending payment once the checkout session exists.
func (r *PostgresRepository) AttachProviderRef(ctx context.Context, transferID, providerRef string) error {
	query := `UPDATE payments SET provider_ref=$2 WHERE transfer_id=$1 AND provider_ref IS NULL`
	result, err := r.db.ExecContext(ctx, query, transferID, providerRef)
	if err != nil {
		return fmt.Errorf("failed to attach provider ref: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

// RecordSettlement applies the provider's reported outcome to the charge
// addressed by its provider reference. Succeeded outcomes stamp settled_at.
func (r *PostgresRepository) RecordSettlement(ctx context.Context, providerRef string, status models.PaymentStatus) error {
	query := `
		UPDATE payments
		SET status=$2, settled_at = CASE WHEN $2 = 'succeeded' THEN now() ELSE settled_at END
		WHERE provider_ref=$1
	`
	result, err := r.db.ExecContext(ctx, query, providerRef, string(status))
	if err != nil {
		return fmt.Errorf("failed to record settlement: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if ra != 1 {
		return common.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
