// Package domain id.go contains functions to generate, parse, and validate note IDs
package domain

import (
	"crypto/rand"
	"encoding/hex"
)

// NoteID is the canonical identifier for a voice note.
// It is a 128-bit random value encoded as 32 lowercase hex characters.
type NoteID string

// NewID generates a new cryptographically random 128-bit NoteID encoded
// as 32 lowercase hexadecimal characters.
func NewID() (NoteID, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	dst := make([]byte, 32)
	hex.Encode(dst, b[:]) // hex.Encode always produces lowercase
	return NoteID(dst), nil
}

// ParseID validates s and returns it as a NoteID. It enforces:
// - non-empty
// - length == 32
// - only lowercase [0-9a-f]
// Returns ErrInvalidID on failure.
func ParseID(s string) (NoteID, error) {
	if !isValidID(s) {
		return "", ErrInvalidID
	}
	return NoteID(s), nil
}

// String returns the string form of the NoteID.
func (id NoteID) String() string { return string(id) }

// Valid reports whether the ID satisfies the same rules as ParseID.
func (id NoteID) Valid() bool { return isValidID(string(id)) }

// isValidID performs validation without allocating errors.
func isValidID(s string) bool {
	if len(s) != 32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		default:
			return false
		}
	}
	return true
}
