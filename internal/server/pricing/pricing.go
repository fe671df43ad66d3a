// Package pricing maps a transfer's aggregate byte size to a pricing tier and
// a charge. It is the single source of truth for tier boundaries: callers
// classify once at registration and persist the result.
package pricing

import (
	"github.com/secureshare/secureshare/internal/common"
	"github.com/secureshare/secureshare/internal/server/models"
)

// Tier boundaries, inclusive upper bounds, binary units.
const (
	FreeLimit    = 100 * common.MiB
	PremiumLimit = 1 * common.GiB
	LargeLimit   = 5 * common.GiB
)

// Charges in currency minor units.
const (
	PremiumAmount int64 = 300
	LargeAmount   int64 = 800
)

// Classify returns the pricing tier and charge for the given aggregate size.
// Sizes above the 5 GiB ceiling are rejected with ErrSizeLimitExceeded before
// classification.
func Classify(totalSizeBytes int64) (models.Tier, int64, error) {
	if totalSizeBytes > LargeLimit {
		return "", 0, common.ErrSizeLimitExceeded
	}
	switch {
	case totalSizeBytes <= FreeLimit:
		return models.TierFree, 0, nil
	case totalSizeBytes <= PremiumLimit:
		return models.TierPremium, PremiumAmount, nil
	default:
		return models.TierLarge, LargeAmount, nil
	}
}

// RequiresPayment reports whether the tier carries a charge.
func RequiresPayment(tier models.Tier) bool {
	return tier != models.TierFree
}
