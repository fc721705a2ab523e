// Package notify fans collection mutations out to listeners.
//
// The Hub runs every attached Listener synchronously, in attach order, for
// each mutation. A listener that fails or panics is logged and counted; the
// remaining listeners still run.
package notify

//go:generate mockgen -source=hub.go -destination=mocks/mocks.go -package=mocks Listener,Publisher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"taproom/internal/beers/store"
	"taproom/internal/notify/metrics"
	"taproom/pkg/requestcontext"
)

// Listener reacts to a collection mutation.
type Listener interface {
	Name() string
	OnNotify(ctx context.Context, snap store.Snapshot, message string) error
}

// Publisher delivers a payload to every live connection and reports how many
// connections it was queued for.
type Publisher interface {
	Broadcast(payload []byte) int
}

// Hub holds the ordered listener list.
type Hub struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// NewHub creates a hub with no listeners.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Attach appends l to the listener list. Attaching the same listener twice
// makes it run twice.
func (h *Hub) Attach(l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, l)
	h.logger.Info("listener attached", "listener", l.Name(), "position", len(h.listeners))
}

// Listeners returns the attached listener names in order.
func (h *Hub) Listeners() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, len(h.listeners))
	for i, l := range h.listeners {
		names[i] = l.Name()
	}
	return names
}

// NotifyAll runs every listener in order. It implements store.Notifier.
func (h *Hub) NotifyAll(ctx context.Context, snap store.Snapshot, message string) {
	h.mu.RLock()
	listeners := make([]Listener, len(h.listeners))
	copy(listeners, h.listeners)
	h.mu.RUnlock()

	start := time.Now()
	h.metrics.IncrementNotifications()
	h.logger.InfoContext(ctx, "collection notification",
		"message", message,
		"count", snap.Count(),
		"listeners", len(listeners),
		"request_id", requestcontext.RequestID(ctx),
	)

	for _, l := range listeners {
		if err := h.invoke(ctx, l, snap, message); err != nil {
			h.metrics.IncrementListenerFailures(l.Name())
			h.logger.ErrorContext(ctx, "listener failed",
				"listener", l.Name(),
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}
	h.metrics.ObserveNotifyDuration(time.Since(start))
}

func (h *Hub) invoke(ctx context.Context, l Listener, snap store.Snapshot, message string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("listener panicked: %v", rec)
		}
	}()
	return l.OnNotify(ctx, snap, message)
}
