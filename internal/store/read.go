package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/bencan1a/calendarbot/internal/errs"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
)

// GetEventsInRange returns events overlapping [tStart, tEnd), excluding
// cancelled events, ordered ascending by start_instant. The overlap
// predicate is start_instant <= tEnd AND end_instant >= tStart.
func (s *Store) GetEventsInRange(ctx context.Context, tStart, tEnd time.Time) ([]eventmodel.Event, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT event_id, source_id, subject, body_preview,
			start_instant, end_instant, start_zone, end_zone,
			all_day, show_as, cancelled, organizer,
			location_name, location_address, online, online_meeting_url,
			web_link, recurring, is_private, organizer_name, organizer_email,
			series_master_id, recurrence_instance_id, is_instance,
			cached_at, last_modified
		FROM events
		WHERE start_instant <= ? AND end_instant >= ? AND cancelled = 0
		ORDER BY start_instant ASC
	`, formatInstant(tEnd), formatInstant(tStart))
	if err != nil {
		return nil, errs.Wrap(errs.CodeQueryFailure, "query events in range", err)
	}
	defer rows.Close()

	events := make([]eventmodel.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errs.Wrap(errs.CodeQueryFailure, "scan event row", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.CodeQueryFailure, "iterate event rows", err)
	}
	return events, nil
}

// CountEvents returns the total number of rows in the events table,
// cancelled included: it reports cache occupancy, not visibility.
func (s *Store) CountEvents(ctx context.Context) (int64, error) {
	var count int64
	if err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		return 0, errs.Wrap(errs.CodeQueryFailure, "count events", err)
	}
	return count, nil
}

// GetRawByID returns the single raw event row matching rawID, or
// (RawEvent{}, false, nil) if absent.
func (s *Store) GetRawByID(ctx context.Context, rawID string) (eventmodel.RawEvent, bool, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT raw_id, source_id, source_url, series_master_id, recurrence_instance_id,
			is_instance, raw_bytes, content_hash, content_size_bytes, cached_at
		FROM raw_events WHERE raw_id = ?
	`, rawID)

	r, err := scanRawEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return eventmodel.RawEvent{}, false, nil
	}
	if err != nil {
		return eventmodel.RawEvent{}, false, errs.Wrap(errs.CodeQueryFailure, "query raw event", err)
	}
	return r, true, nil
}

// Metadata is a typed snapshot of the cache's health and freshness keys.
type Metadata struct {
	LastUpdate          *time.Time
	LastSuccessfulFetch *time.Time
	ConsecutiveFailures int
	LastError           string
	LastErrorTime       *time.Time
}

// GetMetadata returns a snapshot of all metadata keys. Absent keys are
// reported as zero values; consumers treat an absent last_successful_fetch
// as "never".
func (s *Store) GetMetadata(ctx context.Context) (Metadata, error) {
	rows, err := s.readDB.QueryContext(ctx, "SELECT key, value FROM metadata")
	if err != nil {
		return Metadata{}, errs.Wrap(errs.CodeQueryFailure, "query metadata", err)
	}
	defer rows.Close()

	raw := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Metadata{}, errs.Wrap(errs.CodeQueryFailure, "scan metadata row", err)
		}
		raw[k] = v
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, errs.Wrap(errs.CodeQueryFailure, "iterate metadata rows", err)
	}

	md := Metadata{LastError: raw["last_error"]}
	if v, ok := raw["last_update"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			md.LastUpdate = &t
		}
	}
	if v, ok := raw["last_successful_fetch"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			md.LastSuccessfulFetch = &t
		}
	}
	if v, ok := raw["last_error_time"]; ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			md.LastErrorTime = &t
		}
	}
	if v, ok := raw["consecutive_failures"]; ok {
		fmt.Sscanf(v, "%d", &md.ConsecutiveFailures)
	}

	return md, nil
}

// DateCount is a per-date event count used by Describe.
type DateCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Description reports operational facts about the store's on-disk state.
type Description struct {
	FileSizeBytes int64       `json:"file_size_bytes"`
	JournalMode   string      `json:"journal_mode"`
	UserVersion   int         `json:"user_version"`
	EventsByDate  []DateCount `json:"events_by_date"`
}

// Describe reports the database file size, per-date event counts for
// the last 7 days, journal mode, and user_version.
func (s *Store) Describe(ctx context.Context) (Description, error) {
	var desc Description

	if info, err := os.Stat(s.path); err == nil {
		desc.FileSizeBytes = info.Size()
	}

	if err := s.readDB.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&desc.JournalMode); err != nil {
		return Description{}, errs.Wrap(errs.CodeQueryFailure, "read journal_mode", err)
	}
	if err := s.readDB.QueryRowContext(ctx, "PRAGMA user_version").Scan(&desc.UserVersion); err != nil {
		return Description{}, errs.Wrap(errs.CodeQueryFailure, "read user_version", err)
	}

	rows, err := s.readDB.QueryContext(ctx, `
		SELECT substr(start_instant, 1, 10) AS day, COUNT(*)
		FROM events
		WHERE start_instant >= ?
		GROUP BY day
		ORDER BY day ASC
	`, formatInstant(time.Now().UTC().AddDate(0, 0, -7)))
	if err != nil {
		return Description{}, errs.Wrap(errs.CodeQueryFailure, "query per-date counts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc DateCount
		if err := rows.Scan(&dc.Date, &dc.Count); err != nil {
			return Description{}, errs.Wrap(errs.CodeQueryFailure, "scan date count", err)
		}
		desc.EventsByDate = append(desc.EventsByDate, dc)
	}
	if err := rows.Err(); err != nil {
		return Description{}, errs.Wrap(errs.CodeQueryFailure, "iterate date counts", err)
	}

	return desc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(sc rowScanner) (eventmodel.Event, error) {
	var e eventmodel.Event
	var startInstant, endInstant, cachedAt string
	var bodyPreview, locationName, locationAddress, onlineMeetingURL, webLink sql.NullString
	var organizerName, organizerEmail, seriesMasterID, recurrenceInstanceID, lastModified sql.NullString
	var showAs string
	var allDay, cancelled, organizer, online, recurring, isPrivate, isInstance int

	err := sc.Scan(
		&e.EventID, &e.SourceID, &e.Subject, &bodyPreview,
		&startInstant, &endInstant, &e.StartZone, &e.EndZone,
		&allDay, &showAs, &cancelled, &organizer,
		&locationName, &locationAddress, &online, &onlineMeetingURL,
		&webLink, &recurring, &isPrivate, &organizerName, &organizerEmail,
		&seriesMasterID, &recurrenceInstanceID, &isInstance,
		&cachedAt, &lastModified,
	)
	if err != nil {
		return eventmodel.Event{}, err
	}

	e.StartInstant, err = time.Parse(time.RFC3339Nano, startInstant)
	if err != nil {
		return eventmodel.Event{}, fmt.Errorf("parse start_instant: %w", err)
	}
	e.EndInstant, err = time.Parse(time.RFC3339Nano, endInstant)
	if err != nil {
		return eventmodel.Event{}, fmt.Errorf("parse end_instant: %w", err)
	}
	e.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return eventmodel.Event{}, fmt.Errorf("parse cached_at: %w", err)
	}

	e.BodyPreview = bodyPreview.String
	e.LocationName = locationName.String
	e.LocationAddress = locationAddress.String
	e.OnlineMeetingURL = onlineMeetingURL.String
	e.WebLink = webLink.String
	e.OrganizerName = organizerName.String
	e.OrganizerEmail = organizerEmail.String
	e.SeriesMasterID = seriesMasterID.String
	e.RecurrenceInstanceID = recurrenceInstanceID.String
	e.ShowAs = eventmodel.ShowAs(showAs)
	e.AllDay = allDay != 0
	e.Cancelled = cancelled != 0
	e.Organizer = organizer != 0
	e.Online = online != 0
	e.Recurring = recurring != 0
	e.IsPrivate = isPrivate != 0
	e.IsInstance = isInstance != 0
	if lastModified.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastModified.String)
		if err == nil {
			e.LastModifiedUpstream = &t
		}
	}

	return e, nil
}

func scanRawEvent(sc rowScanner) (eventmodel.RawEvent, error) {
	var r eventmodel.RawEvent
	var sourceURL, seriesMasterID, recurrenceInstanceID sql.NullString
	var isInstance int
	var cachedAt string

	err := sc.Scan(
		&r.RawID, &r.SourceID, &sourceURL, &seriesMasterID, &recurrenceInstanceID,
		&isInstance, &r.RawBytes, &r.ContentHash, &r.ContentSizeBytes, &cachedAt,
	)
	if err != nil {
		return eventmodel.RawEvent{}, err
	}

	r.SourceURL = sourceURL.String
	r.SeriesMasterID = seriesMasterID.String
	r.RecurrenceInstanceID = recurrenceInstanceID.String
	r.IsInstance = isInstance != 0

	r.CachedAt, err = time.Parse(time.RFC3339Nano, cachedAt)
	if err != nil {
		return eventmodel.RawEvent{}, fmt.Errorf("parse cached_at: %w", err)
	}

	return r, nil
}
