package webhook

import (
	"context"

	"github.com/cenkalti/backoff/v4"
)

// Run delivers queued events until ctx is done. Each event is retried with
// exponential backoff up to MaxAttempts.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("webhook worker started", "url", n.cfg.URL)

	for {
		select {
		case <-ctx.Done():
			n.logger.Info("webhook worker stopped", "pending", len(n.queue))
			return
		case p := <-n.queue:
			n.deliver(ctx, p)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, p Payload) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.cfg.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(n.cfg.MaxAttempts-1)), ctx)

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		return n.Send(ctx, p)
	}, policy)
	if err != nil {
		n.logger.Warn("webhook delivery failed",
			"event_id", p.EventID,
			"type", p.Type,
			"attempts", attempts,
			"error", err,
		)
		return
	}

	n.logger.Debug("webhook delivered", "event_id", p.EventID, "type", p.Type, "attempts", attempts)
}
