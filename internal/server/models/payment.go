package models

import "time"

// PaymentStatus mirrors the settlement states reported by the external
// payment provider.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSucceeded  PaymentStatus = "succeeded"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCanceled   PaymentStatus = "canceled"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Payment is the charge associated with a paid-tier transfer. The provider
// reports settlement asynchronously through its reference id; this core only
// reads the resulting status.
type Payment struct {
	ID         string
	TransferID string

	// AmountMinorUnits is the charge in the currency's minor unit
	// (e.g. 300 = $3.00 for usd).
	AmountMinorUnits int64
	Currency         string

	// ProviderRef is the external provider's identifier for this charge.
	ProviderRef string

	Status    PaymentStatus
	CreatedAt time.Time
	SettledAt *time.Time
}

// Settled reports whether the charge has been successfully collected.
func (p *Payment) Settled() bool {
	return p.Status == PaymentSucceeded
}
