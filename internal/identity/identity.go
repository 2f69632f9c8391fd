// Package identity is the auth collaborator at the boundary of the note
// core: a user directory (registration, credential checks, existence lookup)
// and JWT credential issuing/verification. The note lifecycle itself never
// touches passwords or tokens; it only consults Exists and the Verifier port.
package identity

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTaken              = errors.New("username or email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrMissingField       = errors.New("username, email and password are required")
)

// bcryptCost matches the work factor the service has always used for stored
// hashes; raising it only affects newly registered users.
const bcryptCost = 10

var _ app.Directory = (*Directory)(nil)

// Directory is the SQLite-backed user store.
type Directory struct{ db *sql.DB }

// New constructs a Directory, initializing the users schema if absent.
func New(db *sql.DB) (*Directory, error) {
	d := &Directory{db: db}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Directory) init() error {
	schema := `CREATE TABLE IF NOT EXISTS users (
username TEXT PRIMARY KEY,
email TEXT NOT NULL UNIQUE,
password_hash TEXT NOT NULL,
created_at INTEGER NOT NULL DEFAULT (unixepoch())
);`
	_, err := d.db.Exec(schema)
	return err
}

// Register creates a new user. Username and email uniqueness are enforced by
// the schema; a violation is reported as ErrTaken.
func (d *Directory) Register(ctx context.Context, username, email, password string) error {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || email == "" || password == "" {
		return ErrMissingField
	}
	if len(password) < 6 {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, `INSERT INTO users (username, email, password_hash) VALUES (?,?,?)`, username, email, string(hash))
	var serr sqlite3.Error
	if errors.As(err, &serr) && (serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey) {
		return ErrTaken
	}
	return err
}

// Authenticate checks the username/password pair. It deliberately does not
// distinguish unknown users from wrong passwords.
func (d *Directory) Authenticate(ctx context.Context, username, password string) error {
	var hash string
	row := d.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE username=?`, username)
	if err := row.Scan(&hash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidCredentials
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Exists reports whether username is a registered identity.
func (d *Directory) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	row := d.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=?`, username)
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
