// Package store provides the concrete implementation of the application
// NoteStore port by composing lower-layer persistence ports (Index and
// BlobStorage). External packages should construct the store via New and
// interact only through the app.NoteStore interface; the reaper additionally
// uses the sweep methods (PurgeBefore, DropTombstonesBefore, Reconcile).
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
)

// Store composes an Index and BlobStorage to satisfy app.NoteStore.
type Store struct {
	index Index
	blobs BlobStorage
	clock app.Clock
}

// New returns a Store implementation of app.NoteStore.
func New(index Index, blobs BlobStorage, clock app.Clock) *Store {
	return &Store{index: index, blobs: blobs, clock: clock}
}

var _ app.NoteStore = (*Store)(nil)

// Create writes the audio payload first, then inserts the metadata row. If
// the insert fails for any reason (including the pair-uniqueness conflict)
// the just-written blob is rolled back so no partial note is observable.
func (s *Store) Create(ctx context.Context, note domain.Note, audio io.Reader) error {
	if s == nil || s.index == nil || s.blobs == nil {
		return errors.New("store not properly initialized")
	}
	if note.Size <= 0 {
		return app.ErrSizeExceeded
	}
	if err := s.blobs.Write(note.BlobRef, audio, note.Size); err != nil {
		return fmt.Errorf("write blob: %w", err)
	}
	if err := s.index.Insert(ctx, note); err != nil {
		_ = s.blobs.Delete(note.BlobRef) // rollback, idempotent
		return err
	}
	return nil
}

// Consume performs the exactly-once pending -> consumed transition and opens
// the payload for streaming. If the blob cannot be opened after a winning
// swap the note is finalized immediately so it is never left consumed with
// its payload still present.
func (s *Store) Consume(ctx context.Context, id domain.NoteID, requester string) (domain.Note, io.ReadCloser, error) {
	if s == nil || s.index == nil {
		return domain.Note{}, nil, errors.New("store not properly initialized")
	}
	note, err := s.index.Consume(ctx, id, requester, s.clock.Now())
	if err != nil {
		return domain.Note{}, nil, err
	}
	rc, err := s.blobs.Open(note.BlobRef)
	if err != nil {
		_ = s.Finalize(ctx, id)
		return domain.Note{}, nil, fmt.Errorf("open blob: %w", err)
	}
	return note, rc, nil
}

// Finalize deletes the note's blob then marks the note purged. The blob
// delete comes first: if it fails the note stays non-terminal so a later
// reaper sweep retries, preserving the purged-implies-no-blob invariant.
func (s *Store) Finalize(ctx context.Context, id domain.NoteID) error {
	note, err := s.index.Get(ctx, id)
	if err != nil {
		if errors.Is(err, app.ErrNotFound) {
			return nil
		}
		return err
	}
	if note.Status == domain.StatusPurged {
		return nil
	}
	if err := s.blobs.Delete(note.BlobRef); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	if _, err := s.index.Purge(ctx, id); err != nil {
		return err
	}
	return nil
}

// ListPending returns the recipient's unread notes.
func (s *Store) ListPending(ctx context.Context, recipient string) ([]domain.Note, error) {
	return s.index.ListPending(ctx, recipient)
}

// ListBySender returns every note the sender has sent.
func (s *Store) ListBySender(ctx context.Context, sender string) ([]domain.Note, error) {
	return s.index.ListBySender(ctx, sender)
}

// PurgeBefore purges every non-terminal note created before cutoff and
// returns how many were purged. The sweep is not transactional: a failure on
// one note is collected and the sweep continues; the affected note stays
// non-terminal for the next sweep.
func (s *Store) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.index.ListExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	var purged int
	var errs []error
	for _, rec := range expired {
		if err := s.blobs.Delete(rec.BlobRef); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("blob %s: %w", rec.ID, err))
			continue
		}
		did, err := s.index.Purge(ctx, rec.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge %s: %w", rec.ID, err))
			continue
		}
		if did {
			purged++
		}
	}
	return purged, errors.Join(errs...)
}

// DropTombstonesBefore prunes purged metadata rows older than cutoff.
func (s *Store) DropTombstonesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return s.index.DeleteTombstonesBefore(ctx, cutoff)
}

// Reconcile scans for blob orphans (payload present but no live note) and
// removes them. Blob listing applies a freshness grace so an in-flight create
// is never swept.
func (s *Store) Reconcile(ctx context.Context) error {
	if s.index == nil || s.blobs == nil {
		return errors.New("store not properly initialized")
	}
	blobRefs, err := s.blobs.List()
	if err != nil {
		return err
	}
	live, err := s.index.ListLiveBlobRefs(ctx)
	if err != nil {
		return err
	}
	liveSet := make(map[string]struct{}, len(live))
	for _, ref := range live {
		liveSet[ref] = struct{}{}
	}
	for _, ref := range blobRefs {
		if _, ok := liveSet[ref]; !ok {
			_ = s.blobs.Delete(ref)
		}
	}
	return nil
}
