// Package models defines server-side data models persisted in the database.
package models

import "time"

// Status tracks where a transfer sits in its lifecycle. Expiry is not a
// stored status: it is derived from ExpiresAt at read time.
type Status string

const (
	StatusAwaitingPayment Status = "awaiting_payment"
	StatusProcessing      Status = "processing"
	StatusCompleted       Status = "completed"
	StatusFailed          Status = "failed"
	// StatusExpired is only ever produced by EffectiveStatus, never stored.
	StatusExpired Status = "expired"
)

// Tier is the pricing category derived from a transfer's aggregate size.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
	TierLarge   Tier = "large"
)

// Transfer is one shareable unit: a single file or a multi-file archive,
// addressed publicly by DownloadToken and guarded by DownloadPassword.
type Transfer struct {
	ID      string
	OwnerID string

	// DisplayName is the original filename, or a generated archive name
	// when the transfer bundles several files.
	DisplayName    string
	TotalSizeBytes int64
	MimeType       string

	// ContentRef is the object-storage key of the payload. Empty until the
	// content upload completes.
	ContentRef string

	DownloadPassword string
	DownloadToken    string

	Status          Status
	PricingTier     Tier
	RequiresPayment bool

	ExpiresAt        time.Time
	DownloadCount    int64
	LastDownloadedAt *time.Time

	// BatchID groups the transfer's member files; MemberFilenames records
	// their names for display. Both are set only for bundles.
	BatchID         string
	MemberFilenames []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsBundle reports whether the transfer packages more than one file.
func (t *Transfer) IsBundle() bool {
	return len(t.MemberFilenames) > 1
}

// IsExpired reports whether the transfer is past its expiry at the given time.
func (t *Transfer) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// EffectiveStatus returns the stored status, overridden by StatusExpired when
// the retention window has elapsed.
func (t *Transfer) EffectiveStatus(now time.Time) Status {
	if t.IsExpired(now) {
		return StatusExpired
	}
	return t.Status
}
