// Package store keeps the in-memory beer collection.
//
// The collection is the single source of truth for served beers. Every
// mutation is followed, under the same write lock, by a notification to the
// configured Notifier, so listeners observe mutations one at a time and in
// the order they happened. Listeners receive an immutable Snapshot and must
// not call back into the Collection.
package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"taproom/internal/beers/models"
	"taproom/pkg/domain"
	"taproom/pkg/platform/paging"
	"taproom/pkg/platform/sentinel"
)

// Notifier receives a snapshot and a human-readable message after each mutation.
type Notifier interface {
	NotifyAll(ctx context.Context, snap Snapshot, message string)
}

// Snapshot is the collection as it was right after one mutation.
type Snapshot struct {
	beers []*models.Beer
}

// NewSnapshot builds a snapshot over beers. The caller must not modify beers afterwards.
func NewSnapshot(beers ...*models.Beer) Snapshot {
	return Snapshot{beers: beers[:len(beers):len(beers)]}
}

// Count is the number of beers in the snapshot.
func (s Snapshot) Count() int {
	return len(s.beers)
}

// Beers returns a copy of the beers in insertion order.
func (s Snapshot) Beers() []*models.Beer {
	return slices.Clone(s.beers)
}

// Collection is an ordered, in-memory set of beers.
type Collection struct {
	mu       sync.RWMutex
	beers    []*models.Beer
	byID     map[domain.BeerID]*models.Beer
	notifier Notifier
}

// New creates an empty collection. A nil notifier disables notifications.
func New(notifier Notifier) *Collection {
	return &Collection{
		byID:     make(map[domain.BeerID]*models.Beer),
		notifier: notifier,
	}
}

// Add appends beer and notifies listeners.
func (c *Collection) Add(ctx context.Context, beer *models.Beer) (models.BeerResponse, error) {
	if beer == nil {
		return models.BeerResponse{}, fmt.Errorf("add beer: nil beer")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byID[beer.ID()]; exists {
		return models.BeerResponse{}, fmt.Errorf("beer %s: %w", beer.ID(), sentinel.ErrAlreadyUsed)
	}
	c.beers = append(c.beers, beer)
	c.byID[beer.ID()] = beer

	c.notify(ctx, fmt.Sprintf("Tap with id %s posted a new beer (id: %s)!", beer.TapID(), beer.ID()))
	return beer.ToResponse(), nil
}

// Delete removes every beer with id and notifies listeners, even when nothing
// matched. It returns the number of beers removed.
func (c *Collection) Delete(ctx context.Context, id domain.BeerID) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Rebuild rather than filter in place: earlier snapshots share the old array.
	kept := make([]*models.Beer, 0, len(c.beers))
	for _, b := range c.beers {
		if b.ID() != id {
			kept = append(kept, b)
		}
	}
	removed := len(c.beers) - len(kept)
	c.beers = kept
	delete(c.byID, id)

	c.notify(ctx, fmt.Sprintf("Beer %s deleted from the collection", id))
	return removed
}

// FindByID returns the beer with id or sentinel.ErrNotFound.
func (c *Collection) FindByID(_ context.Context, id domain.BeerID) (models.BeerResponse, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	beer, ok := c.byID[id]
	if !ok {
		return models.BeerResponse{}, fmt.Errorf("beer %s: %w", id, sentinel.ErrNotFound)
	}
	return beer.ToResponse(), nil
}

// FindAll returns one page of the collection in insertion order.
func (c *Collection) FindAll(_ context.Context, page paging.Page) []models.BeerResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return models.ToResponses(paging.Paginate(c.beers, page))
}

// FindByType returns one page of the beers served in glass, in insertion order.
func (c *Collection) FindByType(_ context.Context, glass models.GlassType, page paging.Page) []models.BeerResponse {
	c.mu.RLock()
	defer c.mu.RUnlock()

	filtered := make([]*models.Beer, 0)
	for _, b := range c.beers {
		if b.Type() == glass {
			filtered = append(filtered, b)
		}
	}
	return models.ToResponses(paging.Paginate(filtered, page))
}

// Count is the current number of beers.
func (c *Collection) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.beers)
}

// Snapshot returns an immutable view of the current collection.
func (c *Collection) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

func (c *Collection) snapshot() Snapshot {
	return Snapshot{beers: c.beers[:len(c.beers):len(c.beers)]}
}

// notify must be called with c.mu held.
func (c *Collection) notify(ctx context.Context, message string) {
	if c.notifier == nil {
		return
	}
	c.notifier.NotifyAll(ctx, c.snapshot(), message)
}
