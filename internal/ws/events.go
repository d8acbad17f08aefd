package ws

import (
	"time"
)

type EventType string

const (
	EventPhotoIngested   EventType = "photo.ingested"
	EventPhotoReindexed  EventType = "photo.reindexed"
	EventReindexFinished EventType = "reindex.finished"
)

// Event is one message pushed to the clients watching an event's corpus.
type Event struct {
	EventID   string      `json:"event_id"`
	Type      EventType   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}
