// Package viewmodel builds the single snapshot both renderers consume.
// Build is a pure function of its inputs: given the same selection
// result, instant, shape, and status info, it always produces an
// identical ViewModel, byte-for-byte when serialized.
package viewmodel

import (
	"time"

	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/selection"
)

// Shape selects between the two view-model layouts a renderer can ask
// for. The Selection Engine's output is identical either way; only the
// grouping of upcoming events into next/later differs.
type Shape string

const (
	// Consolidated puts every upcoming event into NextEvents and leaves
	// LaterEvents empty.
	Consolidated Shape = "consolidated"
	// Split caps NextEvents at 3 events and puts the remainder in
	// LaterEvents.
	Split Shape = "split"
)

const splitNextLimit = 3

// StatusInfo carries cache health fields unrelated to event selection,
// supplied by the caller (Cache Manager / scheduler).
type StatusInfo struct {
	LastUpdate          *time.Time `json:"last_update,omitempty"`
	IsCached            bool       `json:"is_cached"`
	ConnectionStatus    string     `json:"connection_status"`
	RelativeDescription string     `json:"relative_description,omitempty"`
	InteractiveMode     bool       `json:"interactive_mode"`
	SelectedDate        string     `json:"selected_date,omitempty"`
}

// EventData is the display-facing projection of eventmodel.Event.
// Renderers may truncate its string fields further for their own
// surface but must not alter start/end or identity fields.
type EventData struct {
	EventID  string `json:"event_id"`
	SourceID string `json:"source_id"`

	Subject          string `json:"subject"`
	LocationName     string `json:"location_name,omitempty"`
	Online           bool   `json:"online"`
	OnlineMeetingURL string `json:"online_meeting_url,omitempty"`

	StartInstant time.Time `json:"start_instant"`
	EndInstant   time.Time `json:"end_instant"`
	AllDay       bool      `json:"all_day"`
}

// ViewModel is the complete, deterministic snapshot a renderer draws
// from. It never holds a live handle to the store.
type ViewModel struct {
	Now         time.Time `json:"now"`
	DisplayDate string    `json:"display_date"`

	CurrentEvents []EventData `json:"current_events"`
	NextEvents    []EventData `json:"next_events"`
	LaterEvents   []EventData `json:"later_events"`

	Status StatusInfo `json:"status_info"`
}

// Build assembles a ViewModel from a selection.Result. now is the same
// reference instant passed to Select; serverZone formats DisplayDate.
func Build(result selection.Result, now time.Time, shape Shape, status StatusInfo, serverZone *time.Location) ViewModel {
	if serverZone == nil {
		serverZone = time.UTC
	}

	vm := ViewModel{
		Now:         now,
		DisplayDate: now.In(serverZone).Format("Monday, January 2"),
		Status:      status,
	}

	vm.CurrentEvents = toEventData(result.CurrentSelected)

	switch shape {
	case Split:
		upcoming := result.Upcoming
		if len(upcoming) > splitNextLimit {
			vm.NextEvents = toEventData(upcoming[:splitNextLimit])
			vm.LaterEvents = toEventData(upcoming[splitNextLimit:])
		} else {
			vm.NextEvents = toEventData(upcoming)
			vm.LaterEvents = nil
		}
	default: // Consolidated
		vm.NextEvents = toEventData(result.Upcoming)
		vm.LaterEvents = nil
	}

	return vm
}

func toEventData(events []eventmodel.Event) []EventData {
	if len(events) == 0 {
		return nil
	}
	out := make([]EventData, len(events))
	for i, e := range events {
		out[i] = EventData{
			EventID:          e.EventID,
			SourceID:         e.SourceID,
			Subject:          e.Subject,
			LocationName:     e.LocationName,
			Online:           e.Online,
			OnlineMeetingURL: e.OnlineMeetingURL,
			StartInstant:     e.StartInstant,
			EndInstant:       e.EndInstant,
			AllDay:           e.AllDay,
		}
	}
	return out
}
