package notify

import (
	"context"
	"encoding/json"
	"time"

	"taproom/internal/beers/store"
	"taproom/pkg/requestcontext"
)

// Event is the form in which notifications leave the process (Redis, Kafka).
type Event struct {
	Message string    `json:"message"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}

// NewEvent stamps a notification with the request time.
func NewEvent(ctx context.Context, snap store.Snapshot, message string) Event {
	return Event{
		Message: message,
		Count:   snap.Count(),
		At:      requestcontext.Now(ctx).UTC(),
	}
}

// Encode marshals the event to JSON.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}
