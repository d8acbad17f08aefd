package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Retention periodically deletes search audits older than its window.
type Retention struct {
	repo     *Repository
	logger   *slog.Logger
	interval time.Duration
	keep     time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

func NewRetention(repo *Repository, logger *slog.Logger, keep, interval time.Duration) *Retention {
	if interval == 0 {
		interval = time.Hour
	}

	return &Retention{
		repo:     repo,
		logger:   logger.With("component", "audit_retention"),
		interval: interval,
		keep:     keep,
		done:     make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called. A zero window keeps
// audits forever.
func (r *Retention) Start(ctx context.Context) {
	if r.keep <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("audit retention started", "keep", r.keep, "interval", r.interval)

	r.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.done:
			return
		case <-ticker.C:
			r.prune(ctx)
		}
	}
}

func (r *Retention) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Retention) prune(ctx context.Context) {
	deleted, err := r.repo.DeleteBefore(ctx, time.Now().Add(-r.keep))
	if err != nil {
		r.logger.Error("search audit pruning failed", "error", err)
		return
	}
	if deleted > 0 {
		r.logger.Info("search audits pruned", "count", deleted)
	}
}
