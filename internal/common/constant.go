// Package common contains shared constants and sentinel errors used across
// SecureShare components.
package common

// AuthHeaderName is the HTTP header carrying the bearer access token on
// owner-scoped requests.
const AuthHeaderName = "Authorization"

// Binary size units used by pricing and display formatting.
const (
	KiB int64 = 1024
	MiB       = 1024 * KiB
	GiB       = 1024 * MiB
)
