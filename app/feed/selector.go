package feed

import (
	"log/slog"
	"sort"
	"time"

	"github.com/araddon/dateparse"
)

// HandledChecker is the read-only view of the idempotency store the selector
// needs during a run.
type HandledChecker interface {
	IsHandled(sourceURL, itemID string) bool
}

// Selector decides which fetched items enter the digest: it resolves each
// item's identity key and publication time, drops duplicates and dateless
// items, applies the lookback window, and orders the survivors newest first.
//
// Items timestamped in the future relative to now are included. Feed and
// consumer clocks disagree often enough that rejecting future dates drops
// real news; the lookback window only bounds the past.
type Selector struct {
	store    HandledChecker
	location *time.Location
	lookback time.Duration
}

func NewSelector(store HandledChecker, location *time.Location, lookbackHours int) *Selector {
	return &Selector{
		store:    store,
		location: location,
		lookback: time.Duration(lookbackHours) * time.Hour,
	}
}

func (s *Selector) Run(items []Item, now time.Time) []Item {
	selected := make([]Item, 0, len(items))
	duplicates := 0
	noDate := 0
	tooOld := 0

	for _, item := range items {
		item.ID = ItemID(item)

		if s.store.IsHandled(item.SourceURL, item.ID) {
			duplicates++
			continue
		}

		publishedAt, ok := resolvePublished(item)
		if !ok {
			slog.Debug("Skipping item with no resolvable date", "title", item.Title, "feed", item.SourceURL)
			noDate++
			continue
		}
		item.PublishedAt = publishedAt

		if !s.withinWindow(publishedAt, now) {
			tooOld++
			continue
		}

		selected = append(selected, item)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].PublishedAt.After(selected[j].PublishedAt)
	})

	slog.Info("Items selected",
		"total", len(items),
		"selected", len(selected),
		"duplicates", duplicates,
		"no_date", noDate,
		"outside_window", tooOld)

	return selected
}

// resolvePublished resolves an item's publication time via the fallback
// cascade: structured published timestamp, structured updated timestamp, then
// the first parseable raw date string. Timezone-naive strings are read as
// UTC. Items with no resolvable date are never included, regardless of how
// new the feed claims they are.
func resolvePublished(item Item) (time.Time, bool) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, true
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed, true
	}

	for _, raw := range item.CandidateDates {
		if t, err := dateparse.ParseIn(raw, time.UTC); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

// withinWindow reports whether publishedAt falls at or after now minus the
// lookback span. The boundary itself is included.
func (s *Selector) withinWindow(publishedAt, now time.Time) bool {
	cutoff := now.Add(-s.lookback)
	return !publishedAt.In(s.location).Before(cutoff)
}
