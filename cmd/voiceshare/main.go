// Package main provides the voiceshare binary entry point: an ephemeral
// voice note service where every note can be listened to exactly once.
//
// The application flow:
//  1. Load configuration from VSHARE_* environment variables and validate it.
//  2. Prepare the data directory (SQLite index + blob subdirectory).
//  3. Wire the store, identity directory, token signer, websocket broker,
//     metrics manager, and application service.
//  4. Start the retention reaper and the HTTP server.
//  5. Block until a shutdown signal, then drain gracefully.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ArmandoKoffi/voice-share-platform/internal/app"
	"github.com/ArmandoKoffi/voice-share-platform/internal/broker"
	"github.com/ArmandoKoffi/voice-share-platform/internal/config"
	"github.com/ArmandoKoffi/voice-share-platform/internal/httpx"
	"github.com/ArmandoKoffi/voice-share-platform/internal/identity"
	"github.com/ArmandoKoffi/voice-share-platform/internal/metrics"
	"github.com/ArmandoKoffi/voice-share-platform/internal/reaper"
	"github.com/ArmandoKoffi/voice-share-platform/internal/store"
	"github.com/ArmandoKoffi/voice-share-platform/internal/store/filesystem"
	"github.com/ArmandoKoffi/voice-share-platform/internal/store/sqlite"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	if cfg.JWTSecret == "" {
		slog.Error("configuration error", "err", "VSHARE_JWT_SECRET must be set")
		os.Exit(2)
	}
	return cfg
}

func ensureDataDir(dir string) (string, string) {
	if st, err := os.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(dir, 0o700); mkErr != nil {
				slog.Error("failed to create data directory", "dir", dir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat data directory", "dir", dir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("data path not directory", "dir", dir)
		os.Exit(3)
	}
	blobDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(blobDir, 0o700); err != nil {
		slog.Error("create blobs dir", "err", err)
		os.Exit(5)
	}
	return dir, blobDir
}

func openDatabase(dataDir string) (*sql.DB, *sqlite.Index) {
	dbPath := filepath.Join(dataDir, "voiceshare.db")
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		slog.Error("open sqlite driver", "err", err)
		os.Exit(4)
	}
	idx, err := sqlite.New(db)
	if err != nil {
		slog.Error("init sqlite schema", "err", err)
		os.Exit(4)
	}
	return db, idx
}

func newBlobStorage(blobDir string) store.BlobStorage {
	blobs, err := filesystem.New(blobDir)
	if err != nil {
		slog.Error("init blob storage", "err", err)
		os.Exit(5)
	}
	return blobs
}

func newDirectory(db *sql.DB) *identity.Directory {
	dir, err := identity.New(db)
	if err != nil {
		slog.Error("init user directory", "err", err)
		os.Exit(4)
	}
	return dir
}

func newMetrics(ctx context.Context, db *sql.DB) *metrics.Manager {
	m := metrics.New(db, metrics.Config{})
	if err := m.InitSchema(ctx); err != nil {
		slog.Error("init metrics schema", "err", err)
		os.Exit(4)
	}
	m.Start(ctx)
	return m
}

func buildHandler(cfg *config.Config, svc *app.Service, accounts *identity.Directory, tokens *identity.Tokens, push http.Handler, m *metrics.Manager, db *sql.DB, blobDir string) http.Handler {
	h := httpx.New(svc, accounts, tokens, cfg.MaxUploadBytes)
	h.Push = push
	h.Metrics = m
	h.Snapshot = metrics.Handler(m, cfg.MetricsToken)
	h.Readiness = func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := os.ReadDir(blobDir); err != nil {
			return err
		}
		return nil
	}
	return h.Router()
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// No blanket write timeout: audio streaming to slow clients is a
		// legitimate long write. Idle connections are still reaped.
		IdleTimeout: 120 * time.Second,
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()
	dataDir, blobDir := ensureDataDir(cfg.DataDir)
	db, idx := openDatabase(dataDir)
	defer db.Close()
	blobs := newBlobStorage(blobDir)
	accounts := newDirectory(db)
	m := newMetrics(ctx, db)
	clock := realClock{}
	st := store.New(idx, blobs, clock)
	tokens := identity.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	push := broker.New(tokens, slog.Default(), m)
	svc := &app.Service{
		Store:       st,
		Directory:   accounts,
		Notifier:    push,
		Clock:       clock,
		MaxBytes:    cfg.MaxUploadBytes,
		MaxDuration: cfg.MaxDuration,
	}
	rp := reaper.New(st, reaper.Config{
		Interval:  cfg.SweepInterval,
		Retention: cfg.Retention,
		Metrics:   m,
	})
	rp.Start(ctx)

	srv := newServer(cfg, buildHandler(cfg, svc, accounts, tokens, push, m, db, blobDir))
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		rp.Stop()
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Error("http shutdown", "err", err)
	}
	push.Shutdown()
	rp.Stop()
	m.Stop(shutCtx)
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
