package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultSweepInterval drives the eviction sweep.
	DefaultSweepInterval = 20 * time.Second
	// DefaultSaveInterval drives the periodic snapshot save between checkpoints.
	DefaultSaveInterval = 5 * time.Minute
)

// Reconciler runs the manager's periodic sweep and the periodic persistence
// save on their own tickers. It is a thin wrapper; all logic lives in the
// Manager, which is safe to invoke concurrently with live admissions.
type Reconciler struct {
	manager       *Manager
	clock         clockwork.Clock
	sweepInterval time.Duration
	saveInterval  time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewReconciler(manager *Manager, clock clockwork.Clock, sweepInterval, saveInterval time.Duration) *Reconciler {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	if saveInterval <= 0 {
		saveInterval = DefaultSaveInterval
	}
	return &Reconciler{
		manager:       manager,
		clock:         clock,
		sweepInterval: sweepInterval,
		saveInterval:  saveInterval,
		stopCh:        make(chan struct{}),
	}
}

// Start launches the sweep and save loops. They run until Stop is called or
// ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.wg.Add(2)
	go r.loop(ctx, r.sweepInterval, r.manager.Sweep)
	go r.loop(ctx, r.saveInterval, r.manager.Checkpoint)
	slog.Info("Reconciler started",
		"sweep_interval", r.sweepInterval.String(),
		"save_interval", r.saveInterval.String())
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	defer r.wg.Done()

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			fn(ctx)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop halts both loops and waits for any in-flight pass to finish.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	r.wg.Wait()
}
