// Package ids hands out beer identifiers.
package ids

import (
	"sync/atomic"

	"taproom/pkg/domain"
)

// Sequence yields strictly increasing beer ids starting at a fixed value.
// It is safe for concurrent use. Ids are never reused, so a draw that ends
// in a rejected create leaves a gap.
type Sequence struct {
	next atomic.Int64
}

// NewSequence returns a sequence whose first id is start.
func NewSequence(start int64) *Sequence {
	s := &Sequence{}
	s.next.Store(start)
	return s
}

// Next returns the current id and advances the sequence.
func (s *Sequence) Next() domain.BeerID {
	return domain.BeerID(s.next.Add(1) - 1)
}
