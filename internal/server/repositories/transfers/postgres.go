package transfers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/dbx"
	"github.com/secureshare/secureshare/internal/server/models"
)

const uniqueViolation = "23505"

// PostgresRepository implements transfer storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const transferColumns = `id, owner_id, display_name, total_size_bytes, mime_type,
	content_ref, download_password, download_token, status, pricing_tier,
	requires_payment, expires_at, download_count, last_downloaded_at,
	batch_id, member_filenames, created_at, updated_at`

// Create inserts a new transfer. A unique violation on the download token
// constraint is reported as common.ErrTokenConflict so the caller can retry
// with a fresh token; any other unique violation becomes common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, t *models.Transfer) error {
	members, err := json.Marshal(t.MemberFilenames)
	if err != nil {
		return fmt.Errorf("marshaling member filenames: %w", err)
	}

	query := `
		INSERT INTO transfers (id, owner_id, display_name, total_size_bytes, mime_type,
			download_password, download_token, status, pricing_tier, requires_payment,
			expires_at, batch_id, member_filenames)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = r.db.ExecContext(ctx, query,
		t.ID, t.OwnerID, t.DisplayName, t.TotalSizeBytes, t.MimeType,
		t.DownloadPassword, t.DownloadToken, string(t.Status), string(t.PricingTier),
		t.RequiresPayment, t.ExpiresAt, nullString(t.BatchID), members)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			if pgErr.ConstraintName == "transfers_download_token_key" {
				return common.ErrTokenConflict
			}
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// GetByID returns the transfer with the given id, or common.ErrNotFound.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByOwnerAndID returns the transfer only if it belongs to ownerID.
// Absence and foreign ownership are both common.ErrNotFound so callers
// cannot distinguish them.
func (r *PostgresRepository) GetByOwnerAndID(ctx context.Context, ownerID, id string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE owner_id=$1 AND id=$2`
	return r.scanOne(r.db.QueryRowContext(ctx, query, ownerID, id))
}

// GetByToken returns the transfer addressed by the public download token.
func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE download_token=$1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, token))
}

// ListByOwner returns all of the owner's transfers, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE owner_id=$1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select transfers: %w", err)
	}
	defer rows.Close()

	var result []*models.Transfer
	for rows.Next() {
		item, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// SetContent links the stored payload and transitions the transfer to
// completed. The guard clause serializes concurrent completion attempts:
// zero rows affected means another caller already completed (or failed)
// the transfer, reported as common.ErrConflict.
func (r *PostgresRepository) SetContent(ctx context.Context, id, contentRef string) error {
	query := `
		UPDATE transfers
		SET content_ref=$2, status='completed', updated_at=now()
		WHERE id=$1 AND status IN ('awaiting_payment', 'processing') AND content_ref IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, contentRef)
	if err != nil {
		return fmt.Errorf("failed to set content: %w", err)
	}
	ra, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if ra != 1 {
		return common.ErrConflict
	}
	return nil
}

// MarkFailed moves the transfer to the terminal failed status.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id string) error {
	query := `UPDATE transfers SET status='failed', updated_at=now() WHERE id=$1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
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

// IncrementDownloadCount bumps the download counter and stamps the last
// download time in a single UPDATE, so parallel downloads never lose counts.
func (r *PostgresRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	query := `
		UPDATE transfers
		SET download_count = download_count + 1, last_downloaded_at = now(), updated_at = now()
		WHERE id=$1
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment download count: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.Transfer, error) {
	t, err := r.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *PostgresRepository) scan(row rowScanner) (*models.Transfer, error) {
	var (
		t          models.Transfer
		contentRef sql.NullString
		lastDl     sql.NullTime
		batchID    sql.NullString
		members    []byte
		status     string
		tier       string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.DisplayName, &t.TotalSizeBytes, &t.MimeType,
		&contentRef, &t.DownloadPassword, &t.DownloadToken, &status, &tier,
		&t.RequiresPayment, &t.ExpiresAt, &t.DownloadCount, &lastDl,
		&batchID, &members, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transfer: %w", err)
	}

	t.Status = models.Status(status)
	t.PricingTier = models.Tier(tier)
	t.ContentRef = contentRef.String
	t.BatchID = batchID.String
	if lastDl.Valid {
		t.LastDownloadedAt = &lastDl.Time
	}
	if len(members) > 0 {
		if err := json.Unmarshal(members, &t.MemberFilenames); err != nil {
			return nil, fmt.Errorf("unmarshaling member filenames: %w", err)
		}
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
