package common

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MakeRandHexString generates a random lowercase hexadecimal string from
// size bytes of a cryptographically secure source. The resulting string
// has length size*2.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand read error: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray zeroes the buffer in place. Safe on nil.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// FormatSize renders a byte count in human-readable binary units,
// e.g. "35.0 MB".
func FormatSize(size int64) string {
	s := float64(size)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if s < 1024.0 {
			return fmt.Sprintf("%.1f %s", s, unit)
		}
		s /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", s)
}
