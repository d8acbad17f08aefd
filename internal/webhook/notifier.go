// Package webhook posts corpus events (photo ingested, reindex finished)
// to an external URL, signed with HMAC-SHA256.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saturnino-fabrica-de-software/photocap/internal/ws"
)

const (
	SignatureHeader = "X-Photocap-Signature"
	EventHeader     = "X-Photocap-Event"
	userAgent       = "Photocap-Webhook/1.0"
)

type Notifier struct {
	cfg     Config
	client  *http.Client
	queue   chan Payload
	dropped atomic.Int64
	logger  *slog.Logger
}

func NewNotifier(cfg Config, logger *slog.Logger) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  make(chan Payload, cfg.QueueSize),
		logger: logger.With("component", "webhook"),
	}
}

// Publish queues an event for delivery. When the queue is full the event
// is dropped and counted.
func (n *Notifier) Publish(eventID string, eventType ws.EventType, data interface{}) {
	p := Payload{
		Type:      string(eventType),
		EventID:   eventID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	select {
	case n.queue <- p:
	default:
		n.dropped.Add(1)
		n.logger.Warn("webhook queue full, event dropped", "event_id", eventID, "type", eventType)
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (n *Notifier) Dropped() int64 {
	return n.dropped.Load()
}

// Send makes one delivery attempt. Client errors (4xx) are permanent.
func (n *Notifier) Send(ctx context.Context, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("marshal event: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, p.Type)
	req.Header.Set("User-Agent", userAgent)
	if n.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.cfg.Secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return backoff.Permanent(fmt.Errorf("webhook rejected event: HTTP %d", resp.StatusCode))
	}
	return nil
}
