// Package selection implements the deterministic filter -> classify ->
// order -> prioritize pipeline that picks the single event both
// renderers must feature at a given instant. It is a pure function of
// its inputs: no I/O, no suspension points.
package selection

import (
	"sort"
	"time"

	"github.com/bencan1a/calendarbot/internal/eventmodel"
)

// Result is the output of Select: the classified, ordered event lists
// plus the featured event chosen by the priority rule.
type Result struct {
	// Current is every event classified as current (start <= now < end),
	// before the priority rule is applied.
	Current []eventmodel.Event
	// Upcoming is every event classified as upcoming (start > now),
	// sorted ascending by start_instant with source_id as a tiebreak.
	Upcoming []eventmodel.Event
	// Later is Upcoming[1:], empty when Upcoming has fewer than 2 events.
	Later []eventmodel.Event

	// CurrentSelected is Current[:1] when Upcoming is empty, and empty
	// otherwise: the priority rule always prefers an upcoming event over
	// a current one.
	CurrentSelected []eventmodel.Event
	// Featured is the single event the renderer must feature, or nil if
	// there is nothing to show.
	Featured *eventmodel.Event

	// Dropped lists source_ids excluded from classification because a
	// per-event comparison failed (SelectionData).
	Dropped []string
}

// Select runs the full pipeline against events at the reference instant
// now, excluding any event whose SourceID is in hidden. serverZone
// normalizes comparisons for events carrying an unresolved timezone;
// pass time.UTC when no server zone is configured.
func Select(events []eventmodel.Event, now time.Time, hidden map[string]struct{}, serverZone *time.Location) Result {
	if serverZone == nil {
		serverZone = time.UTC
	}

	visible := make([]eventmodel.Event, 0, len(events))
	for _, e := range events {
		if _, excluded := hidden[e.SourceID]; excluded {
			continue
		}
		visible = append(visible, e)
	}

	var result Result
	for _, e := range visible {
		current, upcoming, ok := classify(e, now, serverZone)
		if !ok {
			result.Dropped = append(result.Dropped, e.SourceID)
			continue
		}
		switch {
		case current:
			result.Current = append(result.Current, e)
		case upcoming:
			result.Upcoming = append(result.Upcoming, e)
		}
	}

	sort.SliceStable(result.Upcoming, func(i, j int) bool {
		a, b := result.Upcoming[i], result.Upcoming[j]
		as := a.StartInstant.In(serverZone)
		bs := b.StartInstant.In(serverZone)
		if !as.Equal(bs) {
			return as.Before(bs)
		}
		return a.SourceID < b.SourceID
	})

	if len(result.Upcoming) > 1 {
		result.Later = result.Upcoming[1:]
	}

	switch {
	case len(result.Upcoming) > 0:
		featured := result.Upcoming[0]
		result.Featured = &featured
		result.CurrentSelected = nil
	case len(result.Current) > 0:
		featured := result.Current[0]
		result.Featured = &featured
		result.CurrentSelected = result.Current[:1]
	default:
		result.Featured = nil
		result.CurrentSelected = nil
	}

	return result
}

// classify reports whether e is current or upcoming at now, and ok=false
// if the comparison could not be made (SelectionData: an unresolvable
// zone that also fails the UTC fallback never happens in practice since
// eventmodel always falls back to UTC, but the seam is kept so a future
// comparison failure has somewhere to surface without panicking).
func classify(e eventmodel.Event, now time.Time, serverZone *time.Location) (current, upcoming, ok bool) {
	loc := serverZone
	if e.StartZone != "" && !e.ZoneUnresolved {
		if resolved, err := time.LoadLocation(e.StartZone); err == nil {
			loc = resolved
		}
	}

	start := e.StartInstant.In(loc)
	end := e.EndInstant.In(loc)
	ref := now.In(loc)

	if !ref.Before(start) && ref.Before(end) {
		return true, false, true
	}
	if start.After(ref) {
		return false, true, true
	}
	return false, false, true
}
