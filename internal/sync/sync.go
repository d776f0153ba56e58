// Package sync reconciles external completion events into local per-user,
// per-task, per-date records. The pipeline is idempotent: re-running it with
// the same input leaves the store unchanged.
package sync

import (
	"context"
	"log"
	"time"

	"habitflow/internal/dates"
	"habitflow/internal/repo"
	"habitflow/internal/todoist"
)

// EventSource yields raw completion events from the external API.
type EventSource interface {
	CompletedEvents(ctx context.Context) ([]map[string]any, error)
}

// Store persists normalized completion records under a unique
// (user, task, date) key.
type Store interface {
	UpsertCompletions(ctx context.Context, recs []repo.Completion) error
}

// Pipeline pulls events, normalizes them, buckets each timestamp to the
// user's local calendar date, filters to a window, dedupes, and upserts.
type Pipeline struct {
	Source EventSource
	Store  Store
	// DefaultZone buckets timestamps for users who supplied no timezone.
	DefaultZone *time.Location
}

// Run syncs one user's completions for the window [from, to] (local dates,
// inclusive both ends). A zero from/to selects the server-clock current
// month. Returns how many records were written to the store.
//
// Per-event anomalies (no resolvable task id, no parseable timestamp) drop
// the event with a warning and continue; store failures propagate, since
// silently losing sync writes would corrupt the record retroactively.
func (p *Pipeline) Run(ctx context.Context, userID string, zone *time.Location, from, to time.Time) (int, error) {
	if zone == nil {
		zone = p.DefaultZone
	}
	if zone == nil {
		zone = time.UTC
	}
	if from.IsZero() || to.IsZero() {
		from, to = dates.MonthWindow(time.Now())
	}
	fromKey := dates.ToDateKey(from, nil)
	toKey := dates.ToDateKey(to, nil)

	events, err := p.Source.CompletedEvents(ctx)
	if err != nil {
		return 0, err
	}

	seen := map[repo.Completion]bool{}
	var recs []repo.Completion
	for _, ev := range events {
		c, ok := todoist.NormalizeEvent(ev)
		if !ok {
			log.Printf("sync: dropping event without usable id/date: %v", ev)
			continue
		}
		// The one correctness-critical step: bucket the UTC instant to
		// the user's wall-clock date. 11 PM Pacific on day N is day N+1
		// in UTC and must still land on day N.
		key := dates.ToDateKey(c.OccurredAt, zone)
		if key < fromKey || key > toKey {
			continue
		}
		rec := repo.Completion{UserID: userID, TaskID: c.TaskID, Date: key}
		if seen[rec] {
			continue
		}
		seen[rec] = true
		recs = append(recs, rec)
	}

	if err := p.Store.UpsertCompletions(ctx, recs); err != nil {
		return 0, storeError{err}
	}
	return len(recs), nil
}

// RunQuiet is the opportunistic variant used for background display
// overlays: upstream failure degrades to zero synced records so the rest of
// the application keeps functioning, while store failures still propagate.
func (p *Pipeline) RunQuiet(ctx context.Context, userID string, zone *time.Location, from, to time.Time) (int, error) {
	n, err := p.Run(ctx, userID, zone, from, to)
	if err != nil {
		if isStoreError(err) {
			return 0, err
		}
		log.Printf("sync: upstream unavailable, degrading to empty: %v", err)
		return 0, nil
	}
	return n, nil
}

// storeError marks persistence failures so RunQuiet can tell them apart
// from upstream unavailability.
type storeError struct{ err error }

func (e storeError) Error() string { return e.err.Error() }
func (e storeError) Unwrap() error { return e.err }

func isStoreError(err error) bool {
	_, ok := err.(storeError)
	return ok
}
