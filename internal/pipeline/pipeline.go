package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/Taichi-iskw/ingest/internal/metrics"
	"github.com/Taichi-iskw/ingest/internal/session"
)

// contextLimit bounds the raw item text stored with an item failure
const contextLimit = 100

// Source is one data provider plugged into Collect.
//
// Fetch retrieves raw items for params and returns an empty slice, not an error,
// when there is nothing to return. Parse returns nil for an item that is
// structurally unusable. Validate checks required fields and must not do I/O.
type Source[Q, R, P any] interface {
	ID() string
	Tracker() *session.Tracker
	Fetch(ctx context.Context, params Q) ([]R, error)
	Parse(raw R) (*P, error)
	Validate(item *P) bool
}

// Collect runs one session over src: fetch once, then parse and validate every raw item.
//
// Items are returned in fetch order. A failing item is counted and recorded without
// aborting the pass. When Fetch fails the session is still closed and the error returned.
func Collect[Q, R, P any](ctx context.Context, src Source[Q, R, P], params Q, m *metrics.Metrics) (items []*P, stats session.Stats, err error) {
	tracker := src.Tracker()
	tracker.Start()
	started := time.Now()
	defer func() {
		stats = tracker.End()
		m.ObserveSession(src.ID(), stats.ItemsFetched, stats.ItemsValidated, stats.ItemsFailed, time.Since(started))
	}()

	raws, err := src.Fetch(ctx, params)
	if err != nil {
		return nil, stats, fmt.Errorf("fetch %s: %w", src.ID(), err)
	}
	tracker.AddFetched(len(raws))

	items = make([]*P, 0, len(raws))
	for _, raw := range raws {
		item, ok := processItem(src, tracker, raw)
		if !ok {
			tracker.AddFailed()
			continue
		}
		tracker.AddValidated()
		items = append(items, item)
	}
	return items, stats, nil
}

func processItem[Q, R, P any](src Source[Q, R, P], tracker *session.Tracker, raw R) (item *P, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			tracker.TrackError(session.KindProcessingError, fmt.Sprint(r), itemContext(raw))
			item, ok = nil, false
		}
	}()

	parsed, err := src.Parse(raw)
	if err != nil {
		tracker.TrackError(session.KindProcessingError, err.Error(), itemContext(raw))
		return nil, false
	}
	if parsed == nil {
		return nil, false
	}
	if !src.Validate(parsed) {
		tracker.TrackError(session.KindValidationFailure, "item failed validation", itemContext(raw))
		return nil, false
	}
	return parsed, true
}

func itemContext(raw any) map[string]string {
	text := fmt.Sprintf("%v", raw)
	if runes := []rune(text); len(runes) > contextLimit {
		text = string(runes[:contextLimit])
	}
	return map[string]string{"raw_item": text}
}
