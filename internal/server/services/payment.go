package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/secureshare/secureshare/internal/logging"
	"github.com/secureshare/secureshare/internal/server/models"
	"github.com/secureshare/secureshare/internal/server/repositories/repomanager"
)

// PaymentService is the boundary to the external payment provider. The
// provider's webhook collaborator reports settlement here; this core never
// calls the provider itself.
type PaymentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *sql.DB, m repomanager.RepositoryManager, logger logging.Logger) *PaymentService {
	return &PaymentService{
		db:          db,
		repomanager: m,
		logger:      logger.With("module", "payment_service"),
	}
}

// GetByTransferID returns the charge linked to a transfer.
func (s *PaymentService) GetByTransferID(ctx context.Context, transferID string) (*models.Payment, error) {
	return s.repomanager.Payments(s.db).GetByTransferID(ctx, transferID)
}

// AttachProviderRef links a provider charge reference to the transfer's
// pending payment. Called by the checkout collaborator once the provider
// session exists.
func (s *PaymentService) AttachProviderRef(ctx context.Context, transferID, providerRef string) error {
	return s.repomanager.Payments(s.db).AttachProviderRef(ctx, transferID, providerRef)
}

// RecordSettlement applies a provider-reported outcome to the charge with
// the given provider reference. Signature verification and event parsing
// happen in the webhook collaborator before this is called.
func (s *PaymentService) RecordSettlement(ctx context.Context, providerRef string, status models.PaymentStatus) error {
	if providerRef == "" {
		return fmt.Errorf("provider reference is required")
	}
	if err := s.repomanager.Payments(s.db).RecordSettlement(ctx, providerRef, status); err != nil {
		return err
	}
	s.logger.Info(ctx, "payment settlement recorded", "provider_ref", providerRef, "status", status)
	return nil
}
