// Package idgen produces the short opaque tokens used for session, item and
// client identifiers.
package idgen

import (
	"strings"

	"github.com/google/uuid"
)

// DefaultLength is the token length used when none is configured.
const DefaultLength = 8

// maxLength is the number of hex digits carried by a random UUID.
const maxLength = 32

// Generator returns a new token on every call.
type Generator func() string

// NewGenerator returns a Generator producing lowercase hex tokens of the given
// length, taken from random (version 4) UUIDs. Out-of-range lengths fall back
// to DefaultLength.
func NewGenerator(length int) Generator {
	if length <= 0 || length > maxLength {
		length = DefaultLength
	}
	return func() string {
		return Token(length)
	}
}

// Token returns a single random token of the given length.
func Token(length int) string {
	if length <= 0 || length > maxLength {
		length = DefaultLength
	}
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	// The version nibble sits at index 12; skip it so short tokens stay fully random.
	if length > 12 {
		hex = hex[:12] + hex[13:] + hex[12:13]
	}
	return hex[:length]
}
