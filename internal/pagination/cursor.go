package pagination

import (
	"context"
	"time"
)

// DefaultPageSize is the number of entries requested per page
const DefaultPageSize = 100

// State of a cursor scan
type State int

const (
	StateFetching      State = iota
	StateStaleDetected       // last page held an entry older than the cutoff
	StateDone                // no more pages to fetch
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateStaleDetected:
		return "stale-detected"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// PageFunc fetches up to limit entries starting at offset, newest first
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// Cursor walks a reverse-chronological feed page by page until it reaches the cutoff.
//
// The page holding the first stale entry is returned in full, so callers needing
// exact boundaries must filter by date themselves.
type Cursor[T any] struct {
	offset   int
	pageSize int
	cutoff   time.Time
	timeOf   func(T) time.Time
	state    State
	pages    int
}

// NewCursor creates a cursor. timeOf returns the entry timestamp; a zero time is never stale.
func NewCursor[T any](pageSize int, cutoff time.Time, timeOf func(T) time.Time) *Cursor[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cursor[T]{
		pageSize: pageSize,
		cutoff:   cutoff,
		timeOf:   timeOf,
		state:    StateFetching,
	}
}

func (c *Cursor[T]) State() State { return c.state }

// Offset is the start index of the next page
func (c *Cursor[T]) Offset() int { return c.offset }

func (c *Cursor[T]) PagesFetched() int { return c.pages }

// Done reports whether the scan has terminated
func (c *Cursor[T]) Done() bool {
	return c.state != StateFetching
}

// Next fetches the page at the current offset and advances the cursor.
// A page error leaves the cursor where it was so the page can be retried.
func (c *Cursor[T]) Next(ctx context.Context, fetch PageFunc[T]) ([]T, error) {
	if c.Done() {
		return nil, nil
	}

	page, err := fetch(ctx, c.offset, c.pageSize)
	if err != nil {
		return nil, err
	}
	c.pages++

	if len(page) == 0 {
		c.state = StateDone
		return page, nil
	}

	c.offset += c.pageSize
	for _, entry := range page {
		ts := c.timeOf(entry)
		if !ts.IsZero() && ts.Before(c.cutoff) {
			c.state = StateStaleDetected
			break
		}
	}
	return page, nil
}

// Drain runs the cursor to completion. The context is checked between pages;
// on interruption the entries gathered so far are returned with the context error.
func Drain[T any](ctx context.Context, c *Cursor[T], fetch PageFunc[T]) ([]T, error) {
	var all []T
	for !c.Done() {
		if err := ctx.Err(); err != nil {
			return all, err
		}
		page, err := c.Next(ctx, fetch)
		if err != nil {
			return all, err
		}
		all = append(all, page...)
	}
	return all, nil
}
