package background

import (
	"context"
	"log/slog"
	"time"
)

// RequestExpirer flips stale pending requests to expired
type RequestExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// SessionReaper removes sessions past their expiry
type SessionReaper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// AttemptReaper removes attempt records that aged out of the rate window
type AttemptReaper interface {
	Cleanup(ctx context.Context) (int64, error)
}

// SweepManager periodically expires stale authentication requests and
// prunes dead sessions and attempt records. Correctness never depends on
// it: expiry is also enforced lazily wherever a request or session is
// read, so the sweep only keeps tables small and audit timestamps close
// to the actual expiry moment.
type SweepManager struct {
	requests RequestExpirer
	sessions SessionReaper
	attempts AttemptReaper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(
	requests RequestExpirer,
	sessions SessionReaper,
	attempts AttemptReaper,
	logger *slog.Logger,
	interval time.Duration,
) *SweepManager {
	return &SweepManager{
		requests: requests,
		sessions: sessions,
		attempts: attempts,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	sm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			sm.runSweep(ctx)
		case <-sm.stopCh:
			sm.logger.Info("sweep manager stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("sweep manager context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := sm.requests.ExpireStale(sweepCtx)
	if err != nil {
		sm.logger.Error("failed to expire stale requests", slog.Any("error", err))
	} else if expired > 0 {
		sm.logger.Info("expired stale requests", slog.Int("count", expired))
	}

	sessions, err := sm.sessions.DeleteExpired(sweepCtx)
	if err != nil {
		sm.logger.Error("failed to delete expired sessions", slog.Any("error", err))
	} else if sessions > 0 {
		sm.logger.Info("deleted expired sessions", slog.Int64("count", sessions))
	}

	attempts, err := sm.attempts.Cleanup(sweepCtx)
	if err != nil {
		sm.logger.Error("failed to prune attempt records", slog.Any("error", err))
	} else if attempts > 0 {
		sm.logger.Info("pruned attempt records", slog.Int64("count", attempts))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
