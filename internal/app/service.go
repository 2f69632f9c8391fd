// Package app contains the application orchestration layer. It wires domain
// validation with the persistence and notification ports without performing
// any I/O itself.
package app

import (
	"context"
	"io"

	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
)

// DefaultMIME is assumed when the uploader did not declare a content type.
const DefaultMIME = "audio/webm"

// Service orchestrates note creation, one-time consumption, and finalization
// using the injected store, directory, notifier, and clock.
type Service struct {
	Store       NoteStore
	Directory   Directory
	Notifier    Publisher // optional; nil disables pushes
	Clock       Clock
	MaxBytes    int64
	MaxDuration float64 // seconds
}

// Create validates inputs, verifies the recipient, assigns a new ID, and
// persists the note in pending state. On success an online recipient is
// notified asynchronously; delivery failure is invisible to the sender.
func (s *Service) Create(ctx context.Context, sender, recipient string, audio io.Reader, size int64, duration float64, mime string) (domain.Note, error) {
	if err := domain.ValidateParticipants(sender, recipient); err != nil {
		return domain.Note{}, err
	}
	if err := domain.ValidateDuration(duration, s.MaxDuration); err != nil {
		return domain.Note{}, err
	}
	if size <= 0 || size > s.MaxBytes {
		return domain.Note{}, ErrSizeExceeded
	}
	ok, err := s.Directory.Exists(ctx, recipient)
	if err != nil {
		return domain.Note{}, err
	}
	if !ok {
		return domain.Note{}, ErrRecipientNotFound
	}
	id, genErr := domain.NewID()
	if genErr != nil { // extremely unlikely, but propagate
		return domain.Note{}, genErr
	}
	if mime == "" {
		mime = DefaultMIME
	}
	note := domain.Note{
		ID:        id,
		Sender:    sender,
		Recipient: recipient,
		BlobRef:   id.String(),
		Duration:  duration,
		Size:      size,
		MIME:      mime,
		Status:    domain.StatusPending,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Store.Create(ctx, note, audio); err != nil {
		return domain.Note{}, err
	}
	if s.Notifier != nil {
		// Fire-and-forget: the sender's request must not wait on, or learn
		// about, push delivery.
		go s.Notifier.Publish(recipient, Event{
			From:      note.Sender,
			CreatedAt: note.CreatedAt,
			Duration:  note.Duration,
			ID:        note.ID,
		})
	}
	return note, nil
}

// Consume validates the id then delegates to the store's one-time transition.
// The caller is contractually required to call Finalize(id) after attempting
// to stream the returned payload, regardless of outcome.
func (s *Service) Consume(ctx context.Context, idStr, requester string) (domain.Note, io.ReadCloser, error) {
	id, err := domain.ParseID(idStr)
	if err != nil {
		return domain.Note{}, nil, err
	}
	return s.Store.Consume(ctx, id, requester)
}

// Finalize deletes the note's payload and marks the note purged. Idempotent.
func (s *Service) Finalize(ctx context.Context, idStr string) error {
	id, err := domain.ParseID(idStr)
	if err != nil {
		return err
	}
	return s.Store.Finalize(ctx, id)
}

// ListPending returns the identity's unread received notes. No side effects.
func (s *Service) ListPending(ctx context.Context, identity string) ([]domain.Note, error) {
	if identity == "" {
		return nil, domain.ErrIdentityInvalid
	}
	return s.Store.ListPending(ctx, identity)
}

// ListSent returns every note the identity has sent, with status. No side effects.
func (s *Service) ListSent(ctx context.Context, identity string) ([]domain.Note, error) {
	if identity == "" {
		return nil, domain.ErrIdentityInvalid
	}
	return s.Store.ListBySender(ctx, identity)
}
