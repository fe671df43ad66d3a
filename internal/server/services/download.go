package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/blob"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/repositories/repomanager"
)

// PublicMetadata is the non-secret subset of a transfer shown on the
// pre-download landing page. It never includes the password or owner.
type PublicMetadata struct {
	ID            string
	Filename      string
	SizeBytes     int64
	SizeDisplay   string
	MimeType      string
	ExpiresAt     time.Time
	DownloadCount int64
}

// DownloadResult is a released payload stream plus what the client needs to
// present it as a file download. The caller owns Body and must close it on
// every path, including aborted client connections.
type DownloadResult struct {
	Body        io.ReadCloser
	DisplayName string
	MimeType    string
	SizeBytes   int64
}

// DownloadService is the gateway that authorizes public retrieval by
// token and password and maintains download statistics.
type DownloadService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	logger      logging.Logger

	now func() time.Time
}

// NewDownloadService constructs a DownloadService.
func NewDownloadService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store, logger logging.Logger) *DownloadService {
	return &DownloadService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		logger:      logger.With("module", "download_gateway"),
		now:         time.Now,
	}
}

// Info returns the landing-page metadata for a token without requiring the
// password. It never mutates download statistics. Incomplete transfers are
// indistinguishable from absent ones; expired ones are reported distinctly
// so clients can show a dedicated message.
func (s *DownloadService) Info(ctx context.Context, token string) (*PublicMetadata, error) {
	t, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	return &PublicMetadata{
		ID:            t.ID,
		Filename:      t.DisplayName,
		SizeBytes:     t.TotalSizeBytes,
		SizeDisplay:   common.FormatSize(t.TotalSizeBytes),
		MimeType:      t.MimeType,
		ExpiresAt:     t.ExpiresAt,
		DownloadCount: t.DownloadCount,
	}, nil
}

// Download authorizes retrieval with token and password and releases the
// stored bytes. The password check is constant-time and happens only after
// the existence and expiry checks. A successful release increments the
// download counter atomically; a failed increment is logged and retried
// once but never blocks delivery.
func (s *DownloadService) Download(ctx context.Context, token, password string) (*DownloadResult, error) {
	t, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(password), []byte(t.DownloadPassword)) != 1 {
		return nil, common.ErrInvalidCredentials
	}

	if t.ContentRef == "" {
		s.logger.Error(ctx, "completed transfer has no content ref", "transfer_id", t.ID)
		return nil, common.ErrContentMissing
	}

	body, err := s.blobs.Get(ctx, t.ContentRef)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Error(ctx, "stored content absent from blob store",
				"transfer_id", t.ID, "content_ref", t.ContentRef)
			return nil, common.ErrContentMissing
		}
		return nil, err
	}

	repo := s.repomanager.Transfers(s.db)
	if err := repo.IncrementDownloadCount(ctx, t.ID); err != nil {
		s.logger.Error(ctx, "download count increment failed, retrying", "transfer_id", t.ID, "error", err)
		if err := repo.IncrementDownloadCount(ctx, t.ID); err != nil {
			s.logger.Error(ctx, "download count increment retry failed", "transfer_id", t.ID, "error", err)
		}
	}

	return &DownloadResult{
		Body:        body,
		DisplayName: t.DisplayName,
		MimeType:    t.MimeType,
		SizeBytes:   t.TotalSizeBytes,
	}, nil
}

// lookup resolves a token to a completed transfer, applying the shared
// NotFound/Expired checks in that order.
func (s *DownloadService) lookup(ctx context.Context, token string) (*models.Transfer, error) {
	t, err := s.repomanager.Transfers(s.db).GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusCompleted {
		return nil, common.ErrNotFound
	}
	if t.IsExpired(s.now()) {
		return nil, common.ErrExpired
	}
	return t, nil
}
