// Package domain errors.go contains sentinel errors
package domain

import "errors"

// Sentinel domain-level errors reused by higher layers.
var (
	ErrInvalidID       = errors.New("invalid note id")
	ErrIdentityInvalid = errors.New("identity invalid")
	ErrSelfSend        = errors.New("cannot send a note to yourself")
	ErrDurationInvalid = errors.New("duration invalid")
)
