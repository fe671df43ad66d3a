package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/dbx"
	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/blob"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/repositories/payments"
	"github.com/secureshare/secureshare/internal/server/repositories/transfers"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// fakeTransfersRepo is an in-memory transfers.Repository with the same
// transition rules as the Postgres implementation.
type fakeTransfersRepo struct {
	mu        sync.Mutex
	transfers map[string]*models.Transfer

	// tokenConflicts makes the next N Create calls fail with ErrTokenConflict.
	tokenConflicts int
	createCalls    int

	// incrementErrs makes the next N IncrementDownloadCount calls fail.
	incrementErrs int
}

func newFakeTransfersRepo() *fakeTransfersRepo {
	return &fakeTransfersRepo{transfers: make(map[string]*models.Transfer)}
}

func (f *fakeTransfersRepo) Create(ctx context.Context, t *models.Transfer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.tokenConflicts > 0 {
		f.tokenConflicts--
		return common.ErrTokenConflict
	}
	cp := *t
	f.transfers[t.ID] = &cp
	return nil
}

func (f *fakeTransfersRepo) GetByID(ctx context.Context, id string) (*models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransfersRepo) GetByOwnerAndID(ctx context.Context, ownerID, id string) (*models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok || t.OwnerID != ownerID {
		return nil, common.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTransfersRepo) GetByToken(ctx context.Context, token string) (*models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transfers {
		if t.DownloadToken == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeTransfersRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []*models.Transfer
	for _, t := range f.transfers {
		if t.OwnerID == ownerID {
			cp := *t
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (f *fakeTransfersRepo) SetContent(ctx context.Context, id, contentRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return common.ErrConflict
	}
	if t.ContentRef != "" || (t.Status != models.StatusAwaitingPayment && t.Status != models.StatusProcessing) {
		return common.ErrConflict
	}
	t.ContentRef = contentRef
	t.Status = models.StatusCompleted
	return nil
}

func (f *fakeTransfersRepo) MarkFailed(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transfers[id]
	if !ok {
		return common.ErrNotFound
	}
	t.Status = models.StatusFailed
	return nil
}

func (f *fakeTransfersRepo) IncrementDownloadCount(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.incrementErrs > 0 {
		f.incrementErrs--
		return errors.New("db is down")
	}
	t, ok := f.transfers[id]
	if !ok {
		return common.ErrNotFound
	}
	t.DownloadCount++
	now := time.Now()
	t.LastDownloadedAt = &now
	return nil
}

// fakePaymentsRepo is an in-memory payments.Repository keyed by transfer id.
type fakePaymentsRepo struct {
	mu       sync.Mutex
	payments map[string]*models.Payment
}

func newFakePaymentsRepo() *fakePaymentsRepo {
	return &fakePaymentsRepo{payments: make(map[string]*models.Payment)}
}

func (f *fakePaymentsRepo) Create(ctx context.Context, p *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.payments[p.TransferID]; ok {
		return common.ErrConflict
	}
	cp := *p
	f.payments[p.TransferID] = &cp
	return nil
}

func (f *fakePaymentsRepo) GetByTransferID(ctx context.Context, transferID string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[transferID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePaymentsRepo) AttachProviderRef(ctx context.Context, transferID, providerRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.payments[transferID]
	if !ok || p.ProviderRef != "" {
		return common.ErrNotFound
	}
	p.ProviderRef = providerRef
	return nil
}

func (f *fakePaymentsRepo) RecordSettlement(ctx context.Context, providerRef string, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.ProviderRef == providerRef {
			p.Status = status
			if status == models.PaymentSucceeded {
				now := time.Now()
				p.SettledAt = &now
			}
			return nil
		}
	}
	return common.ErrNotFound
}

// fakeRepoManager hands the same in-memory repositories back regardless of
// whether the caller is inside a transaction.
type fakeRepoManager struct {
	transfersRepo *fakeTransfersRepo
	paymentsRepo  *fakePaymentsRepo
}

func (f *fakeRepoManager) RunMigrations(ctx context.Context, db *sql.DB) error { return nil }

func (f *fakeRepoManager) Transfers(db dbx.DBTX) transfers.Repository { return f.transfersRepo }

func (f *fakeRepoManager) Payments(db dbx.DBTX) payments.Repository { return f.paymentsRepo }

type serviceFixture struct {
	transfers *TransferService
	downloads *DownloadService
	repo      *fakeTransfersRepo
	payments  *fakePaymentsRepo
	store     *blob.MemoryStore
	mock      sqlmock.Sqlmock
	now       time.Time
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := newFakeTransfersRepo()
	pay := newFakePaymentsRepo()
	rm := &fakeRepoManager{transfersRepo: repo, paymentsRepo: pay}
	store := blob.NewMemoryStore()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	ts := NewTransferService(db, rm, store, testLogger(), 7*24*time.Hour, "usd")
	ts.now = func() time.Time { return now }

	ds := NewDownloadService(db, rm, store, testLogger())
	ds.now = func() time.Time { return now }

	return &serviceFixture{
		transfers: ts,
		downloads: ds,
		repo:      repo,
		payments:  pay,
		store:     store,
		mock:      mock,
		now:       now,
	}
}

// errReader fails on first read, standing in for a client that drops the
// connection mid-upload.
type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("stream interrupted") }
