// Package mirror republishes collection notifications to Redis so processes
// outside taproom can follow the stream.
package mirror

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"taproom/internal/beers/store"
	"taproom/internal/notify"
	"taproom/pkg/platform/circuit"
)

// CountKey holds the collection size after the latest mutation.
const CountKey = "taproom:beers:count"

const defaultTimeout = 500 * time.Millisecond

// Redis publishes every notification on a channel and keeps CountKey current.
type Redis struct {
	client  redis.Cmdable
	channel string
	timeout time.Duration
	logger  *slog.Logger
	breaker *circuit.Breaker
}

type Option func(*Redis)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Redis) {
		r.logger = logger
	}
}

// WithTimeout bounds each publish. Listeners run while the collection is locked.
func WithTimeout(d time.Duration) Option {
	return func(r *Redis) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBreaker replaces the default breaker guarding publishes.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Redis) {
		if b != nil {
			r.breaker = b
		}
	}
}

// New creates a mirror publishing on channel.
func New(client redis.Cmdable, channel string, opts ...Option) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("redis channel is required")
	}
	r := &Redis{
		client:  client,
		channel: channel,
		timeout: defaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		breaker: circuit.New("redis-mirror"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Redis) Name() string { return "redis-mirror" }

// OnNotify skips Redis entirely while the breaker is open, so an outage costs
// one timeout per cooldown instead of one per mutation.
func (r *Redis) OnNotify(ctx context.Context, snap store.Snapshot, message string) error {
	if !r.breaker.Allow() {
		r.logger.DebugContext(ctx, "redis mirror circuit open, skipping", "message", message)
		return nil
	}

	payload, err := notify.NewEvent(ctx, snap, message).Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	// The request may finish before the mirror does; only the timeout applies.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Publish(ctx, r.channel, payload)
	pipe.Set(ctx, CountKey, snap.Count(), 0)
	if _, err := pipe.Exec(ctx); err != nil {
		if _, change := r.breaker.RecordFailure(); change.Opened {
			r.logger.WarnContext(ctx, "redis mirror circuit opened", "error", err)
		}
		return fmt.Errorf("mirror to redis: %w", err)
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed {
		r.logger.InfoContext(ctx, "redis mirror circuit closed")
	}
	r.logger.DebugContext(ctx, "notification mirrored", "channel", r.channel, "count", snap.Count())
	return nil
}
