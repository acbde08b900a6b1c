package cachemgr

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/metrics"
	"github.com/bencan1a/calendarbot/internal/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "calendarbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func mustEvent(t *testing.T, sourceID string, start, end, cachedAt time.Time) eventmodel.Event {
	t.Helper()
	ev, err := eventmodel.NewEvent("evt_"+sourceID, eventmodel.UpstreamRecord{
		SourceID:     sourceID,
		StartInstant: start,
		EndInstant:   end,
		Subject:      "Subject " + sourceID,
	}, cachedAt)
	require.NoError(t, err)
	return ev
}

func TestIngest_SuccessUpdatesMetadata(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mgr := New(s, c)

	ev := mustEvent(t, "s1", now, now.Add(time.Hour), now)
	raw := eventmodel.RawEventFromBytes("s1", []byte("payload"), now)

	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{ev}, []eventmodel.RawEvent{raw}))

	md, err := s.GetMetadata(context.Background())
	require.NoError(t, err)
	require.NotNil(t, md.LastSuccessfulFetch)
	assert.Equal(t, now, md.LastSuccessfulFetch.UTC())
	assert.Equal(t, 0, md.ConsecutiveFailures)
}

func TestIsStale_TrueWhenNeverFetched(t *testing.T) {
	s := openTestStore(t)
	c := clock.NewFrozen(time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC))
	mgr := New(s, c)

	stale, err := mgr.IsStale(context.Background())
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestIsStale_FalseWithinTTLAndTrueAfter(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mgr := New(s, c, WithTTL(time.Hour))

	ev := mustEvent(t, "s1", now, now.Add(time.Hour), now)
	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{ev}, nil))

	stale, err := mgr.IsStale(context.Background())
	require.NoError(t, err)
	assert.False(t, stale)

	c.Set(now.Add(2 * time.Hour))
	stale, err = mgr.IsStale(context.Background())
	require.NoError(t, err)
	assert.True(t, stale)
}

func TestEventsInWindow_DelegatesToStore(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mgr := New(s, c)

	ev := mustEvent(t, "s1", now, now.Add(time.Hour), now)
	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{ev}, nil))

	got, err := mgr.EventsInWindow(context.Background(), now.Add(-time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SourceID)
}

func TestIngest_SuccessSetsEventsCachedMetric(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mx := metrics.New(prometheus.NewRegistry())
	mgr := New(s, c, WithMetrics(mx))

	ev := mustEvent(t, "s1", now, now.Add(time.Hour), now)
	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{ev}, nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(mx.EventsCached))
	assert.Equal(t, float64(0), testutil.ToFloat64(mx.IngestFailures))
}

func TestIngest_FailureIncrementsIngestFailuresMetric(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mx := metrics.New(prometheus.NewRegistry())
	mgr := New(s, c, WithMetrics(mx))

	// raw_events.source_id references events(source_id); with no matching
	// event row this violates the foreign key and StoreRawEvents fails.
	raw := eventmodel.RawEventFromBytes("missing", []byte("payload"), now)
	err := mgr.Ingest(context.Background(), nil, []eventmodel.RawEvent{raw})
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(mx.IngestFailures))

	md, err := s.GetMetadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, md.ConsecutiveFailures)
}

func TestStoreEvents_OlderCachedAtDoesNotRegressRow(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mgr := New(s, c)

	fresh := mustEvent(t, "s1", now, now.Add(time.Hour), now)
	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{fresh}, nil))

	stale := mustEvent(t, "s1", now, now.Add(time.Hour), now.Add(-time.Hour))
	require.NoError(t, s.StoreEvents(context.Background(), []eventmodel.Event{stale}))

	got, err := s.GetEventsInRange(context.Background(), now.Add(-time.Hour), now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, now, got[0].CachedAt.UTC())
}

func TestCleanup_RemovesPastRetentionCutoff(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	c := clock.NewFrozen(now)
	mgr := New(s, c, WithRetention(7*24*time.Hour))

	old := mustEvent(t, "old", now.AddDate(0, 0, -10), now.AddDate(0, 0, -10).Add(time.Hour), now)
	recent := mustEvent(t, "recent", now, now.Add(time.Hour), now)
	require.NoError(t, mgr.Ingest(context.Background(), []eventmodel.Event{old, recent}, nil))

	eventsRemoved, _, err := mgr.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), eventsRemoved)
}
