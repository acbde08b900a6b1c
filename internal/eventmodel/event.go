// Package eventmodel defines the canonical Event and RawEvent value
// types: the single concrete representation every downstream component
// assumes, constructed once at the ingest boundary from a validated
// upstream record. Neither type is mutated after construction.
package eventmodel

import (
	"strings"
	"time"

	"github.com/bencan1a/calendarbot/internal/errs"
)

// ShowAs mirrors the original source's free/busy status field.
type ShowAs string

const (
	ShowAsBusy         ShowAs = "busy"
	ShowAsFree         ShowAs = "free"
	ShowAsTentative    ShowAs = "tentative"
	ShowAsOutOfOffice  ShowAs = "out_of_office"
)

// maxDerivedSubjectLen is the truncation length applied when deriving a
// display subject from body preview text.
const maxDerivedSubjectLen = 120

// Event is the canonical parsed calendar appointment. It is immutable
// after construction: all fields are set once by NewEvent and never
// rewritten by readers.
type Event struct {
	EventID  string
	SourceID string

	StartInstant time.Time
	EndInstant   time.Time
	StartZone    string
	EndZone      string
	AllDay       bool
	// ZoneUnresolved is set when StartZone/EndZone did not resolve to a
	// known IANA rule set; comparisons fall back to UTC in that case.
	ZoneUnresolved bool

	Subject         string
	BodyPreview     string
	LocationName    string
	LocationAddress string
	WebLink         string
	OnlineMeetingURL string

	ShowAs        ShowAs
	Cancelled     bool
	Organizer     bool
	Online        bool
	Recurring     bool
	IsPrivate     bool
	OrganizerName string
	OrganizerEmail string

	SeriesMasterID        string
	RecurrenceInstanceID  string
	IsInstance            bool

	CachedAt             time.Time
	LastModifiedUpstream *time.Time
}

// UpstreamRecord is the validated input accepted from the feed fetcher
// (out of scope for this module) used to construct an Event.
type UpstreamRecord struct {
	SourceID string

	StartInstant time.Time
	EndInstant   time.Time
	StartZone    string
	EndZone      string
	AllDay       bool

	Subject         string
	BodyPreview     string
	LocationName    string
	LocationAddress string
	WebLink         string
	OnlineMeetingURL string

	ShowAs        ShowAs
	Cancelled     bool
	Organizer     bool
	Online        bool
	Recurring     bool
	IsPrivate     bool
	OrganizerName string
	OrganizerEmail string

	SeriesMasterID       string
	RecurrenceInstanceID string
	IsInstance           bool

	LastModifiedUpstream *time.Time
}

// NewEvent constructs an Event from a validated upstream record,
// assigning event_id, deriving the display subject, and resolving
// timezone names. cachedAt is the caller-supplied now (UTC) used to
// stamp the row.
func NewEvent(eventID string, rec UpstreamRecord, cachedAt time.Time) (Event, error) {
	if rec.StartInstant.After(rec.EndInstant) {
		return Event{}, errs.Wrap(errs.CodeTimeOrder,
			"start_instant after end_instant", nil).WithSourceID(rec.SourceID)
	}

	zoneUnresolved := false
	if _, err := time.LoadLocation(rec.StartZone); rec.StartZone != "" && err != nil {
		zoneUnresolved = true
	}
	if _, err := time.LoadLocation(rec.EndZone); rec.EndZone != "" && err != nil {
		zoneUnresolved = true
	}

	subject := rec.Subject
	if strings.TrimSpace(subject) == "" {
		subject = deriveSubjectFromBody(rec.BodyPreview)
	}

	showAs := rec.ShowAs
	if showAs == "" {
		showAs = ShowAsBusy
	}

	return Event{
		EventID:              eventID,
		SourceID:             rec.SourceID,
		StartInstant:         rec.StartInstant,
		EndInstant:           rec.EndInstant,
		StartZone:            rec.StartZone,
		EndZone:              rec.EndZone,
		AllDay:               rec.AllDay,
		ZoneUnresolved:       zoneUnresolved,
		Subject:              subject,
		BodyPreview:          rec.BodyPreview,
		LocationName:         rec.LocationName,
		LocationAddress:      rec.LocationAddress,
		WebLink:              rec.WebLink,
		OnlineMeetingURL:     rec.OnlineMeetingURL,
		ShowAs:               showAs,
		Cancelled:            rec.Cancelled,
		Organizer:            rec.Organizer,
		Online:               rec.Online,
		Recurring:            rec.Recurring,
		IsPrivate:            rec.IsPrivate,
		OrganizerName:        rec.OrganizerName,
		OrganizerEmail:       rec.OrganizerEmail,
		SeriesMasterID:       rec.SeriesMasterID,
		RecurrenceInstanceID: rec.RecurrenceInstanceID,
		IsInstance:           rec.IsInstance,
		CachedAt:             cachedAt,
		LastModifiedUpstream: rec.LastModifiedUpstream,
	}, nil
}

// deriveSubjectFromBody returns the first non-empty line of body,
// truncated to maxDerivedSubjectLen runes. Returns "" if body has no
// non-empty line. This derivation happens once, at construction.
func deriveSubjectFromBody(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		runes := []rune(trimmed)
		if len(runes) > maxDerivedSubjectLen {
			runes = runes[:maxDerivedSubjectLen]
		}
		return string(runes)
	}
	return ""
}

// zoneOrUTC resolves name to a *time.Location, falling back to UTC when
// the name is empty or unresolvable.
func zoneOrUTC(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsCurrent reports whether the event is happening at now: start <= now
// < end, timezone-aware (falls back to UTC when the zone is unresolved).
func (e Event) IsCurrent(now time.Time) bool {
	loc := zoneOrUTC(e.StartZone)
	start := e.StartInstant.In(loc)
	end := e.EndInstant.In(loc)
	ref := now.In(loc)
	return !ref.Before(start) && ref.Before(end)
}

// IsUpcoming reports whether the event starts strictly after now.
func (e Event) IsUpcoming(now time.Time) bool {
	loc := zoneOrUTC(e.StartZone)
	start := e.StartInstant.In(loc)
	return start.After(now.In(loc))
}

// MinutesUntilStart returns the whole minutes remaining until start,
// or false if the event has already started (start <= now).
func (e Event) MinutesUntilStart(now time.Time) (int, bool) {
	if !e.StartInstant.After(now) {
		return 0, false
	}
	return int(e.StartInstant.Sub(now).Minutes()), true
}

// Clone returns a value copy of e. Event has no pointer fields that
// require deep copying except LastModifiedUpstream, which is itself
// immutable once set, so a shallow copy is sufficient for the
// "trivially cloneable" contract.
func (e Event) Clone() Event {
	return e
}
