// Package services contains server-side business logic. This file implements
// TransferService, the lifecycle manager for transfers: registration with
// pricing classification, content upload with the payment completion gate,
// and owner-scoped history.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/dbx"
	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/archive"
	"github.com/secureshare/secureshare/internal/server/blob"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/pricing"
	"github.com/secureshare/secureshare/internal/server/repositories/repomanager"
	"github.com/secureshare/secureshare/internal/server/secrets"
)

// tokenCreateAttempts bounds retries on a download-token unique violation.
const tokenCreateAttempts = 3

// maxFilenameLength follows the storage column limit.
const maxFilenameLength = 255

// reservedFilenameChars never appear in a valid filename.
const reservedFilenameChars = `<>:"|?*`

// FileSpec describes one file at registration time, before any bytes arrive.
type FileSpec struct {
	Filename  string
	SizeBytes int64
	MimeType  string
}

// Part is one raw payload at upload time.
type Part struct {
	Filename  string
	SizeBytes int64
	Body      io.Reader
}

// TransferService orchestrates the transfer state machine.
type TransferService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blob.Store
	logger      logging.Logger
	retention   time.Duration
	currency    string

	now func() time.Time
}

// NewTransferService constructs a TransferService. retention is the fixed
// window after which transfers expire; currency is the ISO 4217 code used
// for charges.
func NewTransferService(db *sql.DB, m repomanager.RepositoryManager, blobs blob.Store,
	logger logging.Logger, retention time.Duration, currency string) *TransferService {
	return &TransferService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		logger:      logger.With("module", "transfer_service"),
		retention:   retention,
		currency:    currency,
		now:         time.Now,
	}
}

// Register creates a transfer from the given file specs. Pricing tier,
// download token, download password, and expiry are all fixed here, once,
// and never recomputed. More than one file makes the transfer a bundle
// delivered as a single archive.
func (s *TransferService) Register(ctx context.Context, ownerID string, files []FileSpec) (*models.Transfer, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", common.ErrValidation)
	}

	var totalSize int64
	for _, f := range files {
		if err := validateFilename(f.Filename); err != nil {
			return nil, err
		}
		if f.SizeBytes <= 0 {
			return nil, fmt.Errorf("%w: file %q has non-positive size", common.ErrValidation, f.Filename)
		}
		totalSize += f.SizeBytes
	}

	tier, amount, err := pricing.Classify(totalSize)
	if err != nil {
		return nil, err
	}
	requiresPayment := pricing.RequiresPayment(tier)

	password, err := secrets.NewDownloadPassword()
	if err != nil {
		return nil, fmt.Errorf("generating download password: %w", err)
	}

	now := s.now()

	t := &models.Transfer{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		TotalSizeBytes:   totalSize,
		DownloadPassword: password,
		PricingTier:      tier,
		RequiresPayment:  requiresPayment,
		ExpiresAt:        now.Add(s.retention),
	}

	if requiresPayment {
		t.Status = models.StatusAwaitingPayment
	} else {
		t.Status = models.StatusProcessing
	}

	if len(files) == 1 {
		t.DisplayName = files[0].Filename
		t.MimeType = files[0].MimeType
		if t.MimeType == "" {
			t.MimeType = "application/octet-stream"
		}
		t.MemberFilenames = []string{files[0].Filename}
	} else {
		t.DisplayName = fmt.Sprintf("%d_files_%s.zip", len(files), uuid.NewString()[:8])
		t.MimeType = "application/zip"
		t.BatchID = uuid.NewString()
		names := make([]string, len(files))
		for i, f := range files {
			names[i] = f.Filename
		}
		t.MemberFilenames = names
	}

	// The download token is unique across all transfers; insert conflicts
	// get a fresh token, bounded by tokenCreateAttempts.
	for attempt := 0; ; attempt++ {
		t.DownloadToken, err = secrets.NewDownloadToken()
		if err != nil {
			return nil, fmt.Errorf("generating download token: %w", err)
		}

		err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := s.repomanager.Transfers(tx).Create(ctx, t); err != nil {
				return err
			}
			if !requiresPayment {
				return nil
			}
			return s.repomanager.Payments(tx).Create(ctx, &models.Payment{
				ID:               uuid.NewString(),
				TransferID:       t.ID,
				AmountMinorUnits: amount,
				Currency:         s.currency,
				Status:           models.PaymentPending,
			})
		})
		if err == nil {
			break
		}
		if errors.Is(err, common.ErrTokenConflict) && attempt < tokenCreateAttempts-1 {
			s.logger.Warn(ctx, "download token collision, retrying", "attempt", attempt+1)
			continue
		}
		if errors.Is(err, common.ErrTokenConflict) {
			return nil, fmt.Errorf("%w: retries exhausted", common.ErrTokenConflict)
		}
		return nil, fmt.Errorf("error creating transfer: %w", err)
	}

	s.logger.Info(ctx, "transfer registered",
		"transfer_id", t.ID, "tier", t.PricingTier, "size", t.TotalSizeBytes, "files", len(files))
	return t, nil
}

// UploadContent stores the raw payloads for a registered transfer and
// transitions it to completed. Bundles are assembled into a single zip
// container on the way to the blob store; a partially written container is
// never linked. Paid transfers must have a settled payment before the
// transition is allowed.
func (s *TransferService) UploadContent(ctx context.Context, transferID, ownerID string, parts []Part) (*models.Transfer, error) {
	repo := s.repomanager.Transfers(s.db)

	t, err := repo.GetByOwnerAndID(ctx, ownerID, transferID)
	if err != nil {
		return nil, err
	}

	if t.IsExpired(s.now()) {
		return nil, common.ErrExpired
	}
	if t.Status == models.StatusCompleted || t.Status == models.StatusFailed {
		return nil, common.ErrConflict
	}

	if len(parts) != len(t.MemberFilenames) {
		return nil, fmt.Errorf("%w: expected %d files, got %d",
			common.ErrSizeMismatch, len(t.MemberFilenames), len(parts))
	}
	var total int64
	for _, p := range parts {
		total += p.SizeBytes
	}
	if total != t.TotalSizeBytes {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d",
			common.ErrSizeMismatch, t.TotalSizeBytes, total)
	}

	// Completion gate: checked exactly once, at the transition into
	// completed, with no silent bypass.
	if t.RequiresPayment {
		p, err := s.repomanager.Payments(s.db).GetByTransferID(ctx, t.ID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return nil, common.ErrPaymentRequired
			}
			return nil, fmt.Errorf("checking payment: %w", err)
		}
		if !p.Settled() {
			return nil, common.ErrPaymentRequired
		}
	}

	contentRef := fmt.Sprintf("transfers/%s/%s", ownerID, uuid.NewString())

	if t.IsBundle() {
		if err := s.storeBundle(ctx, contentRef, t, parts); err != nil {
			return nil, err
		}
	} else {
		if err := s.blobs.Put(ctx, contentRef, parts[0].Body, parts[0].SizeBytes); err != nil {
			return nil, fmt.Errorf("%w: storing payload: %v", common.ErrInternal, err)
		}
	}

	if err := repo.SetContent(ctx, t.ID, contentRef); err != nil {
		// Another upload already won the transition; the object written
		// above is orphaned and left to external housekeeping.
		return nil, err
	}

	s.logger.Info(ctx, "transfer completed", "transfer_id", t.ID, "bundle", t.IsBundle())
	return repo.GetByID(ctx, t.ID)
}

// storeBundle streams the assembled archive into the blob store through a
// pipe, so the aggregate payload is never buffered whole. Assembly failure
// marks the transfer failed.
func (s *TransferService) storeBundle(ctx context.Context, contentRef string, t *models.Transfer, parts []Part) error {
	entries := make([]archive.Entry, len(parts))
	for i, p := range parts {
		entries[i] = archive.Entry{Name: p.Filename, Body: p.Body}
	}

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := archive.Assemble(pw, entries)
		pw.CloseWithError(err)
		done <- err
	}()

	putErr := s.blobs.Put(ctx, contentRef, pr, -1)
	_ = pr.CloseWithError(putErr)
	asmErr := <-done

	if asmErr == nil && putErr == nil {
		return nil
	}

	if err := s.repomanager.Transfers(s.db).MarkFailed(ctx, t.ID); err != nil {
		s.logger.Error(ctx, "marking transfer failed", "transfer_id", t.ID, "error", err)
	}
	if asmErr != nil {
		s.logger.Error(ctx, "archive assembly failed", "transfer_id", t.ID, "error", asmErr)
		return asmErr
	}
	s.logger.Error(ctx, "archive storage failed", "transfer_id", t.ID, "error", putErr)
	return fmt.Errorf("%w: storing container: %v", common.ErrAssembly, putErr)
}

// GetTransfer returns an owner-scoped transfer. Foreign or absent ids are
// indistinguishable (both common.ErrNotFound).
func (s *TransferService) GetTransfer(ctx context.Context, ownerID, transferID string) (*models.Transfer, error) {
	return s.repomanager.Transfers(s.db).GetByOwnerAndID(ctx, ownerID, transferID)
}

// ShareLink is the token/password pair for a completed, unexpired transfer.
type ShareLink struct {
	Token    string
	Password string
	URL      string
}

// GetShareLink returns the share credentials for a completed transfer.
func (s *TransferService) GetShareLink(ctx context.Context, ownerID, transferID string) (*ShareLink, error) {
	t, err := s.repomanager.Transfers(s.db).GetByOwnerAndID(ctx, ownerID, transferID)
	if err != nil {
		return nil, err
	}
	if t.Status != models.StatusCompleted || t.IsExpired(s.now()) {
		return nil, common.ErrNotFound
	}
	return &ShareLink{
		Token:    t.DownloadToken,
		Password: t.DownloadPassword,
		URL:      "/api/download/" + t.DownloadToken,
	}, nil
}

// HistoryBatch groups the transfers sharing a batch id, with per-batch
// aggregates. Single transfers form a batch of one keyed by their own id.
type HistoryBatch struct {
	BatchID          string
	FileCount        int
	TotalSizeBytes   int64
	TotalSizeDisplay string
	TotalDownloads   int64
	PricingTier      models.Tier
	CreatedAt        time.Time
	Transfers        []*models.Transfer
}

// HistoryStats aggregates across all of an owner's transfers.
type HistoryStats struct {
	TotalUploads        int
	TotalDownloads      int64
	TotalStorageBytes   int64
	TotalStorageDisplay string
}

// History is the owner's transfer history, grouped by batch, newest first.
type History struct {
	Statistics HistoryStats
	Batches    []HistoryBatch
}

// GetHistory returns the owner's transfers grouped by batch with aggregate
// statistics.
func (s *TransferService) GetHistory(ctx context.Context, ownerID string) (*History, error) {
	list, err := s.repomanager.Transfers(s.db).ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing transfers: %w", err)
	}

	h := &History{}
	byBatch := make(map[string]*HistoryBatch)

	for _, t := range list {
		h.Statistics.TotalUploads++
		h.Statistics.TotalDownloads += t.DownloadCount
		h.Statistics.TotalStorageBytes += t.TotalSizeBytes

		key := t.BatchID
		if key == "" {
			key = t.ID
		}
		b, ok := byBatch[key]
		if !ok {
			b = &HistoryBatch{BatchID: key, PricingTier: t.PricingTier, CreatedAt: t.CreatedAt}
			byBatch[key] = b
		}
		b.FileCount += len(t.MemberFilenames)
		b.TotalSizeBytes += t.TotalSizeBytes
		b.TotalSizeDisplay = common.FormatSize(b.TotalSizeBytes)
		b.TotalDownloads += t.DownloadCount
		b.Transfers = append(b.Transfers, t)
		if t.CreatedAt.After(b.CreatedAt) {
			b.CreatedAt = t.CreatedAt
		}
	}

	h.Statistics.TotalStorageDisplay = common.FormatSize(h.Statistics.TotalStorageBytes)

	h.Batches = make([]HistoryBatch, 0, len(byBatch))
	for _, b := range byBatch {
		h.Batches = append(h.Batches, *b)
	}
	sort.Slice(h.Batches, func(i, j int) bool {
		return h.Batches[i].CreatedAt.After(h.Batches[j].CreatedAt)
	})

	return h, nil
}

func validateFilename(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: filename cannot be empty", common.ErrValidation)
	}
	if len(name) > maxFilenameLength {
		return fmt.Errorf("%w: filename too long (max %d characters)", common.ErrValidation, maxFilenameLength)
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: filename %q contains path traversal characters", common.ErrValidation, name)
	}
	if strings.ContainsAny(name, reservedFilenameChars) {
		return fmt.Errorf("%w: filename %q contains reserved characters", common.ErrValidation, name)
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: filename %q contains control characters", common.ErrValidation, name)
		}
	}
	return nil
}
