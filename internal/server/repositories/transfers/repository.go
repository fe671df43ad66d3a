package transfers

import (
	"context"

	"github.com/secureshare/secureshare/internal/server/models"
)

// Repository persists Transfer records.
//
// SetContent and IncrementDownloadCount carry the per-transfer concurrency
// guarantees: SetContent is a conditional transition only the first caller
// wins, and IncrementDownloadCount is a single atomic SQL increment.
type Repository interface {
	Create(ctx context.Context, t *models.Transfer) error
	GetByID(ctx context.Context, id string) (*models.Transfer, error)
	GetByOwnerAndID(ctx context.Context, ownerID, id string) (*models.Transfer, error)
	GetByToken(ctx context.Context, token string) (*models.Transfer, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Transfer, error)
	SetContent(ctx context.Context, id, contentRef string) error
	MarkFailed(ctx context.Context, id string) error
	IncrementDownloadCount(ctx context.Context, id string) error
}
