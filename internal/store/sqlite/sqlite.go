// Package sqlite provides a SQLite-backed implementation of the store.Index
// port for persisting note metadata and enforcing lifecycle invariants at the
// storage layer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
	"github.com/ArmandoKoffi/voice-share-platform/internal/store"

	// database/sql SQLite driver
	"github.com/mattn/go-sqlite3"
)

var _ store.Index = (*Index)(nil)

// Index implements store.Index using SQLite (via database/sql). It is safe
// for concurrent use; database/sql manages connection pooling. Both critical
// invariants live in the schema and in single-statement updates:
//
//   - one live note per (sender, recipient): partial UNIQUE index over
//     non-purged rows, so Insert is the atomic check-and-insert;
//   - exactly-once consume: UPDATE ... WHERE status='pending' RETURNING,
//     so at most one caller can flip a given row.
type Index struct{ db *sql.DB }

// New constructs an Index, initializing the required schema if absent.
func New(db *sql.DB) (*Index, error) {
	ix := &Index{db: db}
	if err := ix.init(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (i *Index) init() error {
	schema := `CREATE TABLE IF NOT EXISTS notes (
id TEXT PRIMARY KEY,
sender TEXT NOT NULL,
recipient TEXT NOT NULL,
blob_ref TEXT NOT NULL,
duration REAL NOT NULL,
size INTEGER NOT NULL,
mime TEXT NOT NULL,
status TEXT NOT NULL DEFAULT 'pending',
created_at INTEGER NOT NULL,
consumed_at INTEGER
);
CREATE UNIQUE INDEX IF NOT EXISTS notes_live_pair ON notes(sender, recipient) WHERE status <> 'purged';
CREATE INDEX IF NOT EXISTS notes_pending_recipient ON notes(recipient) WHERE status = 'pending';`
	_, err := i.db.Exec(schema)
	return err
}

// Insert stores a new pending note row. A violation of the live-pair unique
// index is reported as app.ErrConflict.
func (i *Index) Insert(ctx context.Context, n domain.Note) error {
	const q = `INSERT INTO notes (id, sender, recipient, blob_ref, duration, size, mime, status, created_at) VALUES (?,?,?,?,?,?,?,?,?)`
	_, err := i.db.ExecContext(ctx, q, n.ID.String(), n.Sender, n.Recipient, n.BlobRef, n.Duration, n.Size, n.MIME, string(domain.StatusPending), n.CreatedAt.Unix())
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return app.ErrConflict
	}
	return err
}

// Consume flips the row from pending to consumed in a single statement. When
// the swap applies to no row, a follow-up read classifies the failure; the
// classification is advisory only, the UPDATE is the sole decider.
func (i *Index) Consume(ctx context.Context, id domain.NoteID, requester string, now time.Time) (domain.Note, error) {
	const cas = `UPDATE notes SET status='consumed', consumed_at=?
WHERE id=? AND recipient=? AND status='pending'
RETURNING sender, recipient, blob_ref, duration, size, mime, created_at`
	n := domain.Note{ID: id, Status: domain.StatusConsumed, ConsumedAt: now.UTC()}
	var createdUnix int64
	row := i.db.QueryRowContext(ctx, cas, now.Unix(), id.String(), requester)
	err := row.Scan(&n.Sender, &n.Recipient, &n.BlobRef, &n.Duration, &n.Size, &n.MIME, &createdUnix)
	if err == nil {
		n.CreatedAt = time.Unix(createdUnix, 0).UTC()
		return n, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, err
	}
	var recipient, status string
	row = i.db.QueryRowContext(ctx, `SELECT recipient, status FROM notes WHERE id=?`, id.String())
	if err := row.Scan(&recipient, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Note{}, app.ErrNotFound
		}
		return domain.Note{}, err
	}
	if recipient != requester {
		return domain.Note{}, app.ErrForbidden
	}
	return domain.Note{}, app.ErrGone
}

const noteColumns = `id, sender, recipient, blob_ref, duration, size, mime, status, created_at, consumed_at`

func scanNote(scan func(dest ...any) error) (domain.Note, error) {
	var (
		n            domain.Note
		idStr        string
		statusStr    string
		createdUnix  int64
		consumedUnix sql.NullInt64
	)
	if err := scan(&idStr, &n.Sender, &n.Recipient, &n.BlobRef, &n.Duration, &n.Size, &n.MIME, &statusStr, &createdUnix, &consumedUnix); err != nil {
		return domain.Note{}, err
	}
	n.ID = domain.NoteID(idStr)
	n.Status = domain.Status(statusStr)
	n.CreatedAt = time.Unix(createdUnix, 0).UTC()
	if consumedUnix.Valid {
		n.ConsumedAt = time.Unix(consumedUnix.Int64, 0).UTC()
	}
	return n, nil
}

// Get returns the note row regardless of status.
func (i *Index) Get(ctx context.Context, id domain.NoteID) (domain.Note, error) {
	row := i.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id=?`, id.String())
	n, err := scanNote(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Note{}, app.ErrNotFound
	}
	return n, err
}

// Purge flips any non-terminal row to purged. Zero affected rows means the
// note was already purged (or never existed), which is not an error.
func (i *Index) Purge(ctx context.Context, id domain.NoteID) (bool, error) {
	res, err := i.db.ExecContext(ctx, `UPDATE notes SET status='purged' WHERE id=? AND status<>'purged'`, id.String())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// ListPending returns pending notes addressed to recipient, oldest first.
func (i *Index) ListPending(ctx context.Context, recipient string) ([]domain.Note, error) {
	const q = `SELECT ` + noteColumns + ` FROM notes WHERE recipient=? AND status='pending' ORDER BY created_at ASC`
	return i.queryNotes(ctx, q, recipient)
}

// ListBySender returns all notes from sender, newest first.
func (i *Index) ListBySender(ctx context.Context, sender string) ([]domain.Note, error) {
	const q = `SELECT ` + noteColumns + ` FROM notes WHERE sender=? ORDER BY created_at DESC`
	return i.queryNotes(ctx, q, sender)
}

func (i *Index) queryNotes(ctx context.Context, q string, arg any) ([]domain.Note, error) {
	rows, err := i.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notes []domain.Note
	for rows.Next() {
		n, err := scanNote(rows.Scan)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return notes, nil
}

// ListExpired returns non-purged notes created before cutoff.
func (i *Index) ListExpired(ctx context.Context, cutoff time.Time) ([]store.ExpiredRecord, error) {
	const q = `SELECT id, blob_ref FROM notes WHERE status<>'purged' AND created_at < ?`
	rows, err := i.db.QueryContext(ctx, q, cutoff.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []store.ExpiredRecord
	for rows.Next() {
		var r store.ExpiredRecord
		var idStr string
		if err = rows.Scan(&idStr, &r.BlobRef); err != nil {
			return nil, err
		}
		r.ID = domain.NoteID(idStr)
		recs = append(recs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// DeleteTombstonesBefore removes purged rows created before cutoff.
func (i *Index) DeleteTombstonesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := i.db.ExecContext(ctx, `DELETE FROM notes WHERE status='purged' AND created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// ListLiveBlobRefs returns blob references of all non-purged notes.
func (i *Index) ListLiveBlobRefs(ctx context.Context) ([]string, error) {
	rows, err := i.db.QueryContext(ctx, `SELECT blob_ref FROM notes WHERE status<>'purged'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err = rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}
