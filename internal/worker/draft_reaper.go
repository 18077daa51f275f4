package worker

import (
	"context"
	"log/slog"
	"time"
)

// DraftStore defines the store operations needed by the draft reaper.
type DraftStore interface {
	DeleteStaleDrafts(ctx context.Context, cutoff time.Time) (int64, error)
}

// DraftReaper periodically deletes onboarding drafts nobody touched within
// the retention window.
type DraftReaper struct {
	store     DraftStore
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewDraftReaper creates a reaper running every interval.
func NewDraftReaper(store DraftStore, interval, retention time.Duration) *DraftReaper {
	return &DraftReaper{
		store:     store,
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
// Does NOT run immediately on start.
func (w *DraftReaper) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "draft-reaper",
		"interval", w.interval.String(),
		"retention", w.retention.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "draft-reaper",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.reap(ctx)
		}
	}
}

// reap executes a single cleanup cycle.
func (w *DraftReaper) reap(ctx context.Context) {
	start := w.now()
	cutoff := start.Add(-w.retention)

	deleted, err := w.store.DeleteStaleDrafts(ctx, cutoff)
	if err != nil {
		// Check for graceful shutdown
		if ctx.Err() != nil {
			return
		}
		slog.Error("draft cleanup failed",
			"component", "worker",
			"action", "reap_failed",
			"error", err,
		)
		return
	}

	slog.Info("draft cleanup completed",
		"component", "worker",
		"action", "reap_complete",
		"deleted", deleted,
		"cutoff", cutoff.UTC().Format(time.RFC3339),
	)
}
