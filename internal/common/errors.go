// Package common defines shared constants and sentinel errors used across
// SecureShare components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Registration errors.
	ErrValidation        = errors.New("validation error")
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrTokenConflict     = errors.New("download token conflict")

	// Upload / completion errors.
	ErrSizeMismatch    = errors.New("file size mismatch")
	ErrPaymentRequired = errors.New("payment required")
	ErrAssembly        = errors.New("archive assembly failed")

	// Download errors.
	ErrExpired            = errors.New("transfer expired")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrContentMissing     = errors.New("content missing")

	// Generic service errors.
	ErrInternal = errors.New("internal error")

	// Auth errors (invalid or malformed bearer token).
	ErrInvalidToken = errors.New("invalid token")
)
