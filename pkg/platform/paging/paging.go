// Package paging slices ordered query results into 1-indexed pages.
package paging

import (
	dErrors "taproom/pkg/domain-errors"
)

// Defaults applied by the HTTP layer when the query string omits them.
const (
	DefaultNumber = 1
	DefaultSize   = 50
)

// Page selects a contiguous window of an ordered result.
type Page struct {
	Number int
	Size   int
}

// New validates a page request. Both values must be at least 1.
func New(number, size int) (Page, error) {
	if number < 1 {
		return Page{}, dErrors.New(dErrors.CodeBadRequest, "page must be greater than or equal to 1")
	}
	if size < 1 {
		return Page{}, dErrors.New(dErrors.CodeBadRequest, "page_size must be greater than or equal to 1")
	}
	return Page{Number: number, Size: size}, nil
}

// Default returns the first page with the default size.
func Default() Page {
	return Page{Number: DefaultNumber, Size: DefaultSize}
}

// Paginate returns the window [start, end) of items for page p.
//
// A page that only partially overlaps the items returns the overlapping part;
// a page entirely past the end returns an empty, non-nil slice. The returned
// slice is capped so appending to it never writes into items.
func Paginate[T any](items []T, p Page) []T {
	if p.Number < 1 || p.Size < 1 {
		return []T{}
	}
	n := len(items)
	// Compare before multiplying; huge page numbers or sizes would overflow.
	if p.Number-1 > n/p.Size {
		return []T{}
	}
	start := (p.Number - 1) * p.Size
	if start >= n {
		return []T{}
	}
	end := start + min(p.Size, n-start)
	return items[start:end:end]
}
