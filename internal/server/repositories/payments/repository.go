package payments

import (
	"context"

	"github.com/secureshare/secureshare/internal/server/models"
)

// Repository persists Payment records. Settlement is written by the external
// provider's webhook collaborator and read by the transfer completion gate.
type Repository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByTransferID(ctx context.Context, transferID string) (*models.Payment, error)
	AttachProviderRef(ctx context.Context, transferID, providerRef string) error
	RecordSettlement(ctx context.Context, providerRef string, status models.PaymentStatus) error
}
