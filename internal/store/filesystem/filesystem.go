// Package filesystem provides a BlobStorage implementation backed by the
// local filesystem. It stores audio payloads as immutable blob files named by
// their reference.
package filesystem

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ArmandoKoffi/voice-share-platform/internal/domain"
	"github.com/ArmandoKoffi/voice-share-platform/internal/store"
)

// Ensure BlobStore implements store.BlobStorage
var _ store.BlobStorage = (*BlobStore)(nil)

// BlobStore implements store.BlobStorage using the local filesystem.
// Files are named by the blob reference (with a fixed suffix) to simplify lookup.
type BlobStore struct {
	root string
}

// New returns a filesystem-backed blob store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string) (*BlobStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("blob root is not a directory")
	}
	return &BlobStore{root: root}, nil
}

// path constructs the full path to the blob file for a given reference.
func (b *BlobStore) path(ref string) string { return filepath.Join(b.root, ref+".blob") }

// Write stores exactly size bytes from r into a file associated with ref.
func (b *BlobStore) Write(ref string, r io.Reader, size int64) error {
	if err := validateRef(ref); err != nil {
		return err
	}
	p := b.path(ref)
	// #nosec G304: path is constructed from a fixed root plus a validated ref with a fixed suffix; no traversal possible.
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.CopyN(f, r, size)
	if err != nil {
		// delete partial file on error
		_ = os.Remove(p)
		return err
	}
	if err = f.Sync(); err != nil {
		return err
	}
	return nil
}

// Open opens a blob file for reading by reference.
func (b *BlobStore) Open(ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	return os.Open(b.path(ref)) // #nosec G304 path constructed internally
}

// Delete removes the blob file for a given reference. A missing file is not
// an error: deletion may legitimately run twice (a late finalize racing a
// reaper sweep).
func (b *BlobStore) Delete(ref string) error {
	if ref == "" {
		return nil
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	err := os.Remove(b.path(ref))
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// List returns all blob refs currently present. Higher layers derive orphans
// by diffing against index-reported live references.
func (b *BlobStore) List() ([]string, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".blob" {
			continue
		}
		// Freshness guard: skip very recent files so a create in flight
		// (blob written, row not yet inserted) is never reported as orphan.
		if info, err := e.Info(); err == nil && time.Since(info.ModTime()) < time.Minute {
			continue
		}
		refs = append(refs, name[:len(name)-5])
	}
	return refs, nil
}

// validateRef enforces that the blob reference is a canonical 32-character
// lowercase hexadecimal note ID (domain.NoteID). This both prevents path
// traversal (no separators, fixed length) and guarantees uniform filenames.
func validateRef(ref string) error {
	if _, err := domain.ParseID(ref); err != nil { // ParseID enforces length==32 and [0-9a-f]
		return errors.New("invalid blob ref: must be 32 lowercase hex chars")
	}
	if strings.Contains(ref, "..") { // ParseID already forbids '.'
		return errors.New("invalid blob ref: contains '..'")
	}
	return nil
}
