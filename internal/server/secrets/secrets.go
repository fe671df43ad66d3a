// Package secrets generates the two credentials attached to every transfer:
// an unguessable download token used in the public URL, and a short
// human-typable download password. Both draw from crypto/rand and are
// independent of each other and of all other transfer fields.
package secrets

import (
	"crypto/rand"
	"fmt"

	"github.com/secureshare/secureshare/internal/common"
)

// passwordAlphabet is lowercase-alphanumeric: 36 symbols, easy to read out
// loud and to type on a phone.
const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// PasswordLength is the fixed download password length.
const PasswordLength = 8

// tokenBytes gives 128 bits of entropy, above the 122-bit uniqueness floor.
// Collisions are still caught by the store's unique constraint and retried.
const tokenBytes = 16

// NewDownloadToken returns a 32-char lowercase-hex token.
func NewDownloadToken() (string, error) {
	return common.MakeRandHexString(tokenBytes)
}

// NewDownloadPassword returns a fixed-length password over passwordAlphabet,
// uniformly distributed via rejection sampling.
func NewDownloadPassword() (string, error) {
	// Largest multiple of len(alphabet) below 256; bytes at or above it are
	// rejected to avoid modulo bias.
	const limit = byte(256 - 256%len(passwordAlphabet))

	out := make([]byte, 0, PasswordLength)
	buf := make([]byte, PasswordLength*2)
	defer common.WipeByteArray(buf)
	for len(out) < PasswordLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("rand read error: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, passwordAlphabet[int(b)%len(passwordAlphabet)])
			if len(out) == PasswordLength {
				break
			}
		}
	}
	return string(out), nil
}
