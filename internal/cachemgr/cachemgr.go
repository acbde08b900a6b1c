// Package cachemgr sits between upstream ingestion and all readers. It
// is the only component permitted to mutate the store: it sequences
// writes, maintains freshness metadata, and runs retention cleanup.
package cachemgr

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/errs"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/metrics"
	"github.com/bencan1a/calendarbot/internal/store"
)

const (
	// DefaultTTL is the default cache_ttl_seconds: the cache is stale
	// once now exceeds last_successful_fetch by this much.
	DefaultTTL = 3600 * time.Second
	// DefaultRetention is the default retention_days: events older than
	// this are eligible for cleanup.
	DefaultRetention = 7 * 24 * time.Hour
)

// Manager orchestrates ingest writes, freshness metadata, and cleanup
// against a Store. Callers never write to the store directly.
type Manager struct {
	store     *store.Store
	clock     clock.Clock
	ttl       time.Duration
	retention time.Duration
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Manager at construction.
type Option func(*Manager)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

// WithRetention overrides DefaultRetention.
func WithRetention(retention time.Duration) Option {
	return func(m *Manager) { m.retention = retention }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics attaches a Metrics handle the Manager updates as it
// ingests: IngestFailures on every failed batch, EventsCached after
// every successful one. Without this option the Manager runs with no
// metrics reporting.
func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// New constructs a Manager over s, reading the current instant from c.
func New(s *store.Store, c clock.Clock, opts ...Option) *Manager {
	m := &Manager{
		store:     s,
		clock:     c,
		ttl:       DefaultTTL,
		retention: DefaultRetention,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ingest writes one batch: events then their associated raws, in that
// order so foreign keys hold. StoreEvents and StoreRawEvents each
// commit in their own transaction, so the batch is not atomic: if
// StoreRawEvents fails, the batch's events stay stored. On success it updates last_update/last_successful_fetch to now
// and resets consecutive_failures. On failure it increments
// consecutive_failures and records last_error/last_error_time, leaving
// last_successful_fetch untouched.
func (m *Manager) Ingest(ctx context.Context, events []eventmodel.Event, raws []eventmodel.RawEvent) error {
	now := m.clock.Now().UTC()

	if err := m.store.StoreEvents(ctx, events); err != nil {
		return m.recordFailure(ctx, now, err)
	}
	if err := m.store.StoreRawEvents(ctx, raws); err != nil {
		return m.recordFailure(ctx, now, err)
	}

	nowText := now.Format(time.RFC3339Nano)
	if err := m.store.UpdateMetadata(ctx, map[string]string{
		"last_update":           nowText,
		"last_successful_fetch": nowText,
		"consecutive_failures":  "0",
	}); err != nil {
		return errs.Wrap(errs.CodeStoreWrite, "update metadata after ingest", err)
	}

	if m.metrics != nil {
		if count, err := m.store.CountEvents(ctx); err == nil {
			m.metrics.EventsCached.Set(float64(count))
		}
	}

	m.log.Info("ingest succeeded", "component", "cachemgr", "events", len(events), "raws", len(raws))
	return nil
}

func (m *Manager) recordFailure(ctx context.Context, now time.Time, cause error) error {
	md, err := m.store.GetMetadata(ctx)
	failures := 1
	if err == nil {
		failures = md.ConsecutiveFailures + 1
	}

	_ = m.store.UpdateMetadata(ctx, map[string]string{
		"consecutive_failures": strconv.Itoa(failures),
		"last_error":           cause.Error(),
		"last_error_time":      now.Format(time.RFC3339Nano),
	})

	if m.metrics != nil {
		m.metrics.IngestFailures.Inc()
	}

	m.log.Error("ingest failed", "component", "cachemgr", "consecutive_failures", failures, "error", cause)
	return cause
}

// IsStale reports whether the cache is expired: last_successful_fetch
// is unset, or now exceeds last_successful_fetch + TTL.
func (m *Manager) IsStale(ctx context.Context) (bool, error) {
	md, err := m.store.GetMetadata(ctx)
	if err != nil {
		return false, err
	}
	if md.LastSuccessfulFetch == nil {
		return true, nil
	}
	now := m.clock.Now().UTC()
	return now.After(md.LastSuccessfulFetch.Add(m.ttl)), nil
}

// EventsInWindow delegates to the store's range query: events
// overlapping the window, cancelled excluded, ordered ascending by
// start_instant.
func (m *Manager) EventsInWindow(ctx context.Context, start, end time.Time) ([]eventmodel.Event, error) {
	return m.store.GetEventsInRange(ctx, start, end)
}

// Cleanup removes events and raw events older than retention, using
// now - retention as the cutoff for both. Returns the counts removed.
func (m *Manager) Cleanup(ctx context.Context) (eventsRemoved, rawRemoved int64, err error) {
	cutoff := m.clock.Now().UTC().Add(-m.retention)

	eventsRemoved, err = m.store.CleanupEvents(ctx, cutoff)
	if err != nil {
		return 0, 0, err
	}
	rawRemoved, err = m.store.CleanupRawEvents(ctx, cutoff)
	if err != nil {
		return eventsRemoved, 0, err
	}

	m.log.Info("cleanup complete", "component", "cachemgr", "events_removed", eventsRemoved, "raw_removed", rawRemoved)
	return eventsRemoved, rawRemoved, nil
}
