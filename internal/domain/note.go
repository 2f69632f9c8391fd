// Package domain note.go defines the voice note record and its lifecycle states.
package domain

import "time"

// Status is the lifecycle state of a note. Transitions are monotonic:
// Pending -> Consumed -> Purged, with Pending -> Purged permitted for the
// reaper. No transition ever moves backward.
type Status string

const (
	// StatusPending means the note awaits its one-time retrieval.
	StatusPending Status = "pending"
	// StatusConsumed means the recipient has claimed the note; the blob may
	// still exist until finalize runs.
	StatusConsumed Status = "consumed"
	// StatusPurged is terminal: the blob is gone and the row is a tombstone.
	StatusPurged Status = "purged"
)

// CanTransition reports whether moving from s to next is a legal forward step.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConsumed || next == StatusPurged
	case StatusConsumed:
		return next == StatusPurged
	default:
		return false
	}
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool { return s == StatusPurged }

// Note is one ephemeral voice message and its lifecycle metadata. The audio
// payload itself lives in blob storage under BlobRef.
type Note struct {
	ID         NoteID
	Sender     string
	Recipient  string
	BlobRef    string
	Duration   float64 // seconds
	Size       int64   // payload bytes
	MIME       string  // stored encoding, e.g. audio/webm
	Status     Status
	CreatedAt  time.Time
	ConsumedAt time.Time // zero until the note is consumed
}

// ValidateDuration checks that d is positive and does not exceed max seconds.
// Returns ErrDurationInvalid on any violation.
func ValidateDuration(d, max float64) error {
	if d <= 0 {
		return ErrDurationInvalid
	}
	if d > max {
		return ErrDurationInvalid
	}
	return nil
}

// ValidateParticipants checks both identities are present and distinct.
func ValidateParticipants(sender, recipient string) error {
	if sender == "" || recipient == "" {
		return ErrIdentityInvalid
	}
	if sender == recipient {
		return ErrSelfSend
	}
	return nil
}
