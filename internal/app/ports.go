// Package app defines the application layer "ports" (interfaces) and simple
// data contracts that the core use-cases of the voice note service depend
// upon. It follows a hexagonal (ports & adapters) design: this package
// declares what the core needs, while adapter packages (SQLite+filesystem
// storage, the websocket broker, the HTTP layer, the reaper) provide concrete
// implementations. No I/O, logging, SQL, or network concerns belong here.
package app

import (
	"context"
	"io"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
)

// Clock abstracts time to enable deterministic testing of lifecycle logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// Event is the payload pushed to an online recipient when a note is created
// for them. It intentionally excludes the recipient's own identity and the
// blob reference.
type Event struct {
	From      string        `json:"from"`
	CreatedAt time.Time     `json:"createdAt"`
	Duration  float64       `json:"durationSeconds"`
	ID        domain.NoteID `json:"id"`
}

// NoteStore is the storage port for voice notes. Implementations must provide
// durability, the one-live-note-per-pair invariant, and the exactly-once
// consume transition. They typically coordinate an index (SQLite) with blob
// storage (filesystem) but those details are outside this interface.
type NoteStore interface {
	// Create persists the note metadata and its audio payload. 'audio'
	// streams exactly note.Size bytes. The pair-uniqueness check and the
	// insert MUST be a single atomic operation; a violation yields
	// ErrConflict and no partial state (no blob without a row, no row
	// without a blob) may remain observable.
	Create(ctx context.Context, note domain.Note, audio io.Reader) error

	// Consume atomically transitions the note from pending to consumed
	// (exactly once) and returns the note plus a reader for its payload.
	// Exactly one of N concurrent callers succeeds; the rest observe
	// ErrGone. ErrForbidden is returned when requester is not the note's
	// recipient. The caller must invoke Finalize after draining the reader,
	// whatever the stream outcome.
	Consume(ctx context.Context, id domain.NoteID, requester string) (domain.Note, io.ReadCloser, error)

	// Finalize deletes the note's blob (a missing blob is not an error) and
	// transitions the note to purged. Calling it on an already-purged or
	// unknown note is a no-op.
	Finalize(ctx context.Context, id domain.NoteID) error

	// ListPending returns the recipient's undelivered notes, oldest first.
	ListPending(ctx context.Context, recipient string) ([]domain.Note, error)

	// ListBySender returns every note the sender has sent, including
	// consumed and purged tombstones, newest first.
	ListBySender(ctx context.Context, sender string) ([]domain.Note, error)
}

// Directory is the identity-lookup collaborator used to verify that a
// recipient exists before a note is accepted.
type Directory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// Publisher is the best-effort push port. Publish must never block the
// caller's request path for long and never reports delivery failure; an
// offline recipient simply misses the event.
type Publisher interface {
	Publish(identity string, ev Event)
}
