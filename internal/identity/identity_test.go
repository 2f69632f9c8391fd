package identity

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(dir, "test.db?_busy_timeout=5000"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db
}

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := New(openTestDB(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestRegisterAndAuthenticate(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	if err := d.Register(ctx, "alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := d.Authenticate(ctx, "alice", "hunter22"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := d.Authenticate(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", err)
	}
	if err := d.Authenticate(ctx, "nobody", "hunter22"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestRegisterTrimsWhitespace(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	if err := d.Register(ctx, "  alice  ", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ok, err := d.Exists(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("trimmed username not registered: ok=%v err=%v", ok, err)
	}
}

func TestRegisterValidation(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	cases := []struct {
		name, user, email, pass string
		want                    error
	}{
		{"missing username", "", "a@b.c", "hunter22", ErrMissingField},
		{"missing email", "alice", "", "hunter22", ErrMissingField},
		{"missing password", "alice", "a@b.c", "", ErrMissingField},
		{"whitespace username", "   ", "a@b.c", "hunter22", ErrMissingField},
		{"short password", "alice", "a@b.c", "12345", ErrWeakPassword},
	}
	for _, c := range cases {
		if err := d.Register(ctx, c.user, c.email, c.pass); !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestRegisterDuplicate(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	if err := d.Register(ctx, "alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := d.Register(ctx, "alice", "other@example.com", "hunter22"); !errors.Is(err, ErrTaken) {
		t.Fatalf("duplicate username: got %v", err)
	}
	if err := d.Register(ctx, "alice2", "alice@example.com", "hunter22"); !errors.Is(err, ErrTaken) {
		t.Fatalf("duplicate email: got %v", err)
	}
}

func TestExists(t *testing.T) {
	d := newTestDirectory(t)
	ctx := context.Background()
	ok, err := d.Exists(ctx, "alice")
	if err != nil || ok {
		t.Fatalf("expected not registered: ok=%v err=%v", ok, err)
	}
	if err := d.Register(ctx, "alice", "alice@example.com", "hunter22"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ok, err = d.Exists(ctx, "alice")
	if err != nil || !ok {
		t.Fatalf("expected registered: ok=%v err=%v", ok, err)
	}
}
