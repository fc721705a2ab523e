// Package realtime tracks live websocket connections and pushes messages to them.
package realtime

import (
	"fmt"
	"slices"
	"sync"

	"taproom/internal/realtime/metrics"
	"taproom/pkg/domain"
	"taproom/pkg/platform/sentinel"
)

// Conn is one live connection as seen by the registry.
type Conn interface {
	ID() domain.ConnectionID
	// Send queues payload without blocking and reports whether it was accepted.
	Send(payload []byte) bool
	Close() error
}

// Registry is the set of live connections, kept in registration order.
type Registry struct {
	mu      sync.RWMutex
	conns   []Conn
	max     int
	metrics *metrics.Metrics
}

type RegistryOption func(*Registry)

// WithMaxConnections bounds the registry; 0 means unlimited.
func WithMaxConnections(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.max = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds c. It fails with sentinel.ErrCapacity when the registry is full.
// Registering the same connection twice is a no-op.
func (r *Registry) Register(c Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(c.ID()) >= 0 {
		return nil
	}
	if r.max > 0 && len(r.conns) >= r.max {
		return fmt.Errorf("register connection: %w", sentinel.ErrCapacity)
	}
	r.conns = append(r.conns, c)
	r.metrics.SetConnections(len(r.conns))
	return nil
}

// Unregister removes c and reports whether it was present.
func (r *Registry) Unregister(c Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(c.ID())
	if i < 0 {
		return false
	}
	// A new slice, so a broadcast holding the old one is unaffected.
	r.conns = slices.Delete(slices.Clone(r.conns), i, i+1)
	r.metrics.SetConnections(len(r.conns))
	return true
}

// Full reports whether a new connection would be refused.
func (r *Registry) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.max > 0 && len(r.conns) >= r.max
}

// Len is the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast queues payload on every connection, in registration order, and
// returns how many accepted it. It never waits for delivery.
func (r *Registry) Broadcast(payload []byte) int {
	r.mu.RLock()
	conns := slices.Clone(r.conns)
	r.mu.RUnlock()

	queued := 0
	for _, c := range conns {
		if c.Send(payload) {
			queued++
			r.metrics.IncrementSent()
		} else {
			r.metrics.IncrementDropped()
		}
	}
	return queued
}

// CloseAll closes every live connection. Their read loops then unregister them.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := slices.Clone(r.conns)
	r.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}

// indexOf must be called with r.mu held.
func (r *Registry) indexOf(id domain.ConnectionID) int {
	return slices.IndexFunc(r.conns, func(c Conn) bool { return c.ID() == id })
}
