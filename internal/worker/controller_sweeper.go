package worker

import (
	"context"
	"log/slog"
	"time"
)

// Evictor drops idle cached state.
type Evictor interface {
	EvictIdle() int
}

// ControllerSweeper evicts idle dashboard controllers between requests, so
// users who never come back do not keep their plan in memory.
type ControllerSweeper struct {
	evictor  Evictor
	interval time.Duration
}

// NewControllerSweeper creates a sweeper running every interval.
func NewControllerSweeper(e Evictor, interval time.Duration) *ControllerSweeper {
	return &ControllerSweeper{evictor: e, interval: interval}
}

// Run starts the worker loop. Blocks until ctx is cancelled.
func (w *ControllerSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.evictor.EvictIdle(); n > 0 {
				slog.Debug("idle controllers evicted",
					"component", "worker",
					"worker", "controller-sweeper",
					"evicted", n,
				)
			}
		}
	}
}
