package agg

import (
	"context"
	"fmt"
	"sync"
	"time"

	appLog "github.com/olofsundelin/familywall/internal/log"
	"github.com/olofsundelin/familywall/internal/model"
)

// Source is the narrow adapter contract: one upstream calendar source
// producing normalized events for a window. Implementations live in
// internal/source; new sources are added by writing one adapter, never by
// touching the merge logic.
type Source interface {
	Label() string
	Fetch(ctx context.Context, w model.Window) ([]model.CalendarEvent, error)
}

const defaultFetchTimeout = 15 * time.Second

// FetchAll fans out to all sources concurrently and waits for every fetch to
// settle. A source that errors, times out or panics contributes zero events
// and a logged warning; it never prevents the others' results from being
// merged. All sources failing is a legitimate result (an empty wall), not an
// error.
func FetchAll(ctx context.Context, sources []Source, w model.Window, timeout time.Duration) []model.CalendarEvent {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	results := make([][]model.CalendarEvent, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = fetchOne(ctx, src, w, timeout)
		}(i, src)
	}
	wg.Wait()

	merged := make([]model.CalendarEvent, 0)
	for _, evs := range results {
		merged = append(merged, evs...)
	}
	return merged
}

// fetchOne runs a single adapter fetch with its own timeout and converts any
// failure into an empty result.
func fetchOne(ctx context.Context, src Source, w model.Window, timeout time.Duration) (events []model.CalendarEvent) {
	defer func() {
		if r := recover(); r != nil {
			appLog.Warn("source fetch panicked; dropping its events",
				"source", src.Label(), "panic", fmt.Sprint(r))
			events = nil
		}
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	evs, err := src.Fetch(fetchCtx, w)
	if err != nil {
		appLog.Warn("source fetch failed; continuing without it",
			"source", src.Label(), "reason", err)
		return nil
	}

	appLog.Info("source fetch ok", "source", src.Label(), "event_count", len(evs))
	return evs
}
