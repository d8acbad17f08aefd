package webhook

import (
	"time"
)

// Payload is the JSON body posted for every corpus event.
type Payload struct {
	Type      string      `json:"type"`
	EventID   string      `json:"event_id"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

type Config struct {
	URL            string
	Secret         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	QueueSize      int
}

func DefaultConfig(url, secret string) Config {
	return Config{
		URL:            url,
		Secret:         secret,
		Timeout:        10 * time.Second,
		MaxAttempts:    4,
		InitialBackoff: time.Second,
		QueueSize:      256,
	}
}
