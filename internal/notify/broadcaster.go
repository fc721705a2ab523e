package notify

import (
	"context"
	"io"
	"log/slog"

	"taproom/internal/beers/store"
)

// Broadcaster pushes every notification message verbatim to all connections.
type Broadcaster struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewBroadcaster creates a broadcaster writing to publisher.
func NewBroadcaster(publisher Publisher, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Broadcaster{publisher: publisher, logger: logger}
}

func (b *Broadcaster) Name() string { return "broadcaster" }

// OnNotify queues message for every connection; delivery is not awaited.
func (b *Broadcaster) OnNotify(ctx context.Context, _ store.Snapshot, message string) error {
	queued := b.publisher.Broadcast([]byte(message))
	b.logger.DebugContext(ctx, "notification broadcast", "message", message, "connections", queued)
	return nil
}
