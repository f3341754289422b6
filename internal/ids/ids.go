// Package ids generates identifiers for sessions, messages, and parts.
package ids

import "github.com/google/uuid"

// New returns a random UUIDv4 string.
func New() string {
	return uuid.NewString()
}

// NewPrefixed returns a UUIDv4 string with a type prefix, e.g. "msg_".
func NewPrefixed(prefix string) string {
	return prefix + uuid.NewString()
}
