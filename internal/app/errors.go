package app

import "errors"

// Application-level sentinel errors. The HTTP layer maps these onto the wire
// taxonomy; adapters translate storage-specific failures into them.
var (
	// ErrNotFound indicates no note exists for the given id.
	ErrNotFound = errors.New("note not found")
	// ErrRecipientNotFound indicates the addressed identity is unknown.
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrConflict indicates a live note already exists for the pair.
	ErrConflict = errors.New("an unread note already exists for this recipient")
	// ErrForbidden indicates the requester is not the note's recipient.
	ErrForbidden = errors.New("not the recipient of this note")
	// ErrGone indicates the note was already consumed or purged.
	ErrGone = errors.New("note already consumed or purged")
	// ErrSizeExceeded indicates the payload size is zero or above the maximum.
	ErrSizeExceeded = errors.New("size exceeded")
)
