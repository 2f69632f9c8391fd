// Package reaper implements background enforcement of the retention window:
// notes older than the window are purged whether or not they were consumed,
// orphan blobs are reconciled, and old tombstone rows are pruned. It runs
// independently from the request path; every transition it applies is the
// same compare-and-swap the live path uses, so racing a concurrent consume
// or finalize is safe by construction.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Store abstracts the sweep operations the Reaper requires. Implemented by
// *store.Store.
type Store interface {
	// PurgeBefore purges non-terminal notes created before cutoff and
	// returns how many were purged. Partial progress with a joined error is
	// expected behavior, not failure.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
	// DropTombstonesBefore prunes purged metadata rows created before cutoff.
	DropTombstonesBefore(ctx context.Context, cutoff time.Time) (int, error)
	// Reconcile removes orphan blobs (best-effort).
	Reconcile(ctx context.Context) error
}

// Recorder is the optional metrics hook (satisfied by *metrics.Manager).
type Recorder interface {
	Inc(name string, delta int64)
	Observe(name string, value int64)
}

// Metric names recorded by the reaper.
const (
	CounterNotesPurged    = "notes_purged_reaper_total"
	SummaryPurgedPerSweep = "reaper_purged_per_sweep"
)

// Config holds tunables for the Reaper.
type Config struct {
	Interval  time.Duration // how often a sweep begins
	Retention time.Duration // age beyond which a note is purged
	Logger    *slog.Logger  // optional logger (defaults to slog.Default())
	Metrics   Recorder      // optional
}

// Reaper encapsulates the background sweep loop.
type Reaper struct {
	store Store
	cfg   Config

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Reaper.
func New(store Store, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Reaper{
		store:  store,
		cfg:    cfg,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the reaper loop in a new goroutine.
func (r *Reaper) Start(ctx context.Context) {
	if r.ticker != nil {
		return
	} // already started
	r.ticker = time.NewTicker(r.cfg.Interval)
	go r.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (r *Reaper) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Reaper) loop(ctx context.Context) {
	log := r.cfg.Logger.With("domain", "reaper")
	defer func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("reaper stop", "reason", "context_cancel")
			return
		case <-r.stopCh:
			log.Info("reaper stop", "reason", "stop_signal")
			return
		case <-r.ticker.C:
			r.runSweep(ctx)
		}
	}
}

// runSweep performs one full purge + tombstone-prune + reconcile pass.
// Errors are logged and never fatal; whatever a sweep could not finish, the
// next one retries.
func (r *Reaper) runSweep(ctx context.Context) {
	start := time.Now()
	log := r.cfg.Logger.With("domain", "reaper", "action", "sweep")
	now := time.Now().UTC()
	cutoff := now.Add(-r.cfg.Retention)

	purged, err := r.store.PurgeBefore(ctx, cutoff)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("purge", "error", err)
	}
	// Tombstones linger one extra retention window before their metadata goes
	// too, so late consume attempts still see Gone rather than NotFound.
	pruned, err := r.store.DropTombstonesBefore(ctx, cutoff.Add(-r.cfg.Retention))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("prune tombstones", "error", err)
	}
	if rerr := r.store.Reconcile(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
		log.Error("reconcile", "error", rerr)
	}
	if r.cfg.Metrics != nil {
		r.cfg.Metrics.Inc(CounterNotesPurged, int64(purged))
		r.cfg.Metrics.Observe(SummaryPurgedPerSweep, int64(purged))
	}
	log.Info("sweep complete", "purged", purged, "pruned", pruned, "ms", time.Since(start).Milliseconds())
}
