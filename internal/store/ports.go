// Package store defines internal persistence adapter ports used by the
// higher-level NoteStore implementation. These ports isolate the concrete
// SQLite index and filesystem blob storage so they can be tested and evolved
// independently. Callers outside this package interact only with the
// app.NoteStore implementation, not these internal details.
package store

import (
	"context"
	"io"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
)

// Index abstracts the note metadata operations (backed by SQLite). All state
// transitions it exposes are single atomic statements; no caller ever reads a
// status and writes it back.
type Index interface {
	// Insert stores a new pending note. It must enforce the one-live-note
	// per (sender, recipient) pair invariant atomically with the insert and
	// return app.ErrConflict on violation.
	Insert(ctx context.Context, note domain.Note) error

	// Consume compare-and-swaps the note from pending to consumed, stamping
	// consumedAt = now, and returns the full note. Exactly one concurrent
	// caller can win. Losers receive app.ErrNotFound, app.ErrForbidden, or
	// app.ErrGone depending on why the swap did not apply.
	Consume(ctx context.Context, id domain.NoteID, requester string, now time.Time) (domain.Note, error)

	// Get returns the note row regardless of status, or app.ErrNotFound.
	Get(ctx context.Context, id domain.NoteID) (domain.Note, error)

	// Purge compare-and-swaps the note to purged from any non-terminal
	// status. It reports whether this call performed the transition; an
	// already-purged or absent note yields (false, nil).
	Purge(ctx context.Context, id domain.NoteID) (bool, error)

	// ListPending returns pending notes addressed to recipient, oldest first.
	ListPending(ctx context.Context, recipient string) ([]domain.Note, error)

	// ListBySender returns all notes from sender, newest first.
	ListBySender(ctx context.Context, sender string) ([]domain.Note, error)

	// ListExpired returns non-purged notes created before cutoff.
	ListExpired(ctx context.Context, cutoff time.Time) ([]ExpiredRecord, error)

	// DeleteTombstonesBefore removes purged rows created before cutoff and
	// returns the count. Keeps the table bounded; pair uniqueness ignores
	// purged rows so this never affects invariants.
	DeleteTombstonesBefore(ctx context.Context, cutoff time.Time) (int, error)

	// ListLiveBlobRefs returns blob references of all non-purged notes.
	ListLiveBlobRefs(ctx context.Context) ([]string, error)
}

// BlobStorage abstracts audio payload persistence on the filesystem.
type BlobStorage interface {
	Write(ref string, r io.Reader, size int64) error
	Open(ref string) (io.ReadCloser, error)
	// Delete removes the blob if present. A missing blob is not an error.
	Delete(ref string) error
	// List returns all blob refs present in storage (filenames sans extension).
	List() ([]string, error)
}

// ExpiredRecord represents a past-retention note needing purge.
type ExpiredRecord struct {
	ID      domain.NoteID
	BlobRef string
}
