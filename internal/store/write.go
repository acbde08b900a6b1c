package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/bencan1a/calendarbot/internal/errs"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
)

// StoreEvents upserts events by source_id inside one transaction
// (invariant 1). The upsert target is source_id, not event_id: on
// conflict it only applies the incoming row when its cached_at is not
// older than the row already stored, keeping cached_at non-decreasing
// per source_id (invariant 5) instead of blindly replacing on every
// call. A row whose cached_at would move backwards is silently
// skipped rather than rejected, matching how StoreRawEvents tolerates
// a caller replaying an older batch. Empty input is a successful no-op.
func (s *Store) StoreEvents(ctx context.Context, events []eventmodel.Event) error {
	if len(events) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO events (
				event_id, source_id, subject, body_preview,
				start_instant, end_instant, start_zone, end_zone,
				all_day, show_as, cancelled, organizer,
				location_name, location_address, online, online_meeting_url,
				web_link, recurring, is_private, organizer_name, organizer_email,
				series_master_id, recurrence_instance_id, is_instance,
				cached_at, last_modified
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(source_id) DO UPDATE SET
				event_id = excluded.event_id,
				subject = excluded.subject,
				body_preview = excluded.body_preview,
				start_instant = excluded.start_instant,
				end_instant = excluded.end_instant,
				start_zone = excluded.start_zone,
				end_zone = excluded.end_zone,
				all_day = excluded.all_day,
				show_as = excluded.show_as,
				cancelled = excluded.cancelled,
				organizer = excluded.organizer,
				location_name = excluded.location_name,
				location_address = excluded.location_address,
				online = excluded.online,
				online_meeting_url = excluded.online_meeting_url,
				web_link = excluded.web_link,
				recurring = excluded.recurring,
				is_private = excluded.is_private,
				organizer_name = excluded.organizer_name,
				organizer_email = excluded.organizer_email,
				series_master_id = excluded.series_master_id,
				recurrence_instance_id = excluded.recurrence_instance_id,
				is_instance = excluded.is_instance,
				cached_at = excluded.cached_at,
				last_modified = excluded.last_modified
			WHERE excluded.cached_at >= events.cached_at
		`)
		if err != nil {
			return classifyExecError(err)
		}
		defer stmt.Close()

		for _, e := range events {
			_, err := stmt.ExecContext(ctx,
				e.EventID, e.SourceID, e.Subject, nullableString(e.BodyPreview),
				formatInstant(e.StartInstant), formatInstant(e.EndInstant), e.StartZone, e.EndZone,
				boolToInt(e.AllDay), string(e.ShowAs), boolToInt(e.Cancelled), boolToInt(e.Organizer),
				nullableString(e.LocationName), nullableString(e.LocationAddress), boolToInt(e.Online), nullableString(e.OnlineMeetingURL),
				nullableString(e.WebLink), boolToInt(e.Recurring), boolToInt(e.IsPrivate), nullableString(e.OrganizerName), nullableString(e.OrganizerEmail),
				nullableString(e.SeriesMasterID), nullableString(e.RecurrenceInstanceID), boolToInt(e.IsInstance),
				formatInstant(e.CachedAt), formatOptionalInstant(e.LastModifiedUpstream),
			)
			if err != nil {
				return classifyExecError(err).WithSourceID(e.SourceID)
			}
		}
		return nil
	})
}

// StoreRawEvents inserts raw events inside one transaction. raw_id is
// always unique, so multiple raws sharing a source_id succeed (invariant
// 4 requires the referenced event to exist or be inserted in the same
// ingest batch, which the Cache Manager guarantees by calling
// StoreEvents before StoreRawEvents).
func (s *Store) StoreRawEvents(ctx context.Context, raws []eventmodel.RawEvent) error {
	if len(raws) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO raw_events (
				raw_id, source_id, subject, start_instant, end_instant,
				start_zone, end_zone, all_day, show_as, cancelled, organizer,
				location_name, location_address, online, online_meeting_url, web_link,
				recurring, series_master_id, recurrence_instance_id, is_instance,
				last_modified, source_url, raw_bytes, content_hash, content_size_bytes, cached_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return classifyExecError(err)
		}
		defer stmt.Close()

		for _, r := range raws {
			_, err := stmt.ExecContext(ctx,
				r.RawID, r.SourceID, nil, nil, nil,
				nil, nil, 0, nil, 0, 0,
				nil, nil, 0, nil, nil,
				0, nullableString(r.SeriesMasterID), nullableString(r.RecurrenceInstanceID), boolToInt(r.IsInstance),
				nil, nullableString(r.SourceURL), r.RawBytes, r.ContentHash, r.ContentSizeBytes, formatInstant(r.CachedAt),
			)
			if err != nil {
				return classifyExecError(err).WithSourceID(r.SourceID)
			}
		}
		return nil
	})
}

// UpdateMetadata upserts each key in kv in a single transaction:
// metadata writes are last-writer-wins on key, and the enclosing
// transaction makes multi-key updates atomic.
func (s *Store) UpdateMetadata(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO metadata (key, value, updated_at)
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
		`)
		if err != nil {
			return classifyExecError(err)
		}
		defer stmt.Close()

		for k, v := range kv {
			if _, err := stmt.ExecContext(ctx, k, v); err != nil {
				return classifyExecError(err)
			}
		}
		return nil
	})
}

// ClearEvents wipes the events table entirely. With foreign keys on, it
// fails and deletes nothing while any raw_events row still references
// an event; clear the raw events first.
func (s *Store) ClearEvents(ctx context.Context) error {
	_, err := s.writeDB.ExecContext(ctx, "DELETE FROM events")
	if err != nil {
		return classifyExecError(err)
	}
	return nil
}

// ClearRawEvents wipes the raw_events table entirely.
func (s *Store) ClearRawEvents(ctx context.Context) error {
	_, err := s.writeDB.ExecContext(ctx, "DELETE FROM raw_events")
	if err != nil {
		return classifyExecError(err)
	}
	return nil
}

// CleanupEvents deletes events whose end_instant < cutoff, returning the
// count removed.
func (s *Store) CleanupEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM events WHERE end_instant < ?", formatInstant(cutoff))
	if err != nil {
		return 0, classifyExecError(err)
	}
	return res.RowsAffected()
}

// CleanupRawEvents deletes raw events whose cached_at < cutoff, returning
// the count removed.
func (s *Store) CleanupRawEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.writeDB.ExecContext(ctx, "DELETE FROM raw_events WHERE cached_at < ?", formatInstant(cutoff))
	if err != nil {
		return 0, classifyExecError(err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// instantLayout is RFC3339 with a fixed-width, zero-padded nanosecond
// fraction (unlike time.RFC3339Nano, which trims trailing zeros).
// Fixed width keeps the stored strings in the same lexicographic and
// chronological order, so start_instant/cached_at range comparisons
// in SQL agree with actual time order.
const instantLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatInstant(t time.Time) string {
	return t.UTC().Format(instantLayout)
}

func formatOptionalInstant(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatInstant(*t)
}

func classifyExecError(err error) *errs.Error {
	if err == nil {
		return nil
	}
	if isBusyOrLocked(err) {
		return errs.Wrap(errs.CodeTransient, "store busy", err)
	}
	return errs.Wrap(errs.CodeStoreWrite, "store write failed", err)
}
