package scheduler

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/clock"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
	"github.com/bencan1a/calendarbot/internal/store"
)

func TestRun_FetchesAndIngestsOnEachTick(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "calendarbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	now := time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)
	mgr := cachemgr.New(s, clock.NewFrozen(now))

	var fetchCount int32
	fetch := func(ctx context.Context) ([]eventmodel.Event, []eventmodel.RawEvent, error) {
		atomic.AddInt32(&fetchCount, 1)
		ev, err := eventmodel.NewEvent("evt_s1", eventmodel.UpstreamRecord{
			SourceID:     "s1",
			StartInstant: now,
			EndInstant:   now.Add(time.Hour),
		}, now)
		require.NoError(t, err)
		return []eventmodel.Event{ev}, nil, nil
	}

	sched := New(mgr, fetch, WithFetchInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()

	err = sched.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fetchCount), int32(2))

	md, err := s.GetMetadata(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, md.LastSuccessfulFetch)
}

func TestRun_FetchErrorDoesNotStopLoop(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "calendarbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mgr := cachemgr.New(s, clock.NewReal())

	var fetchCount int32
	fetch := func(ctx context.Context) ([]eventmodel.Event, []eventmodel.RawEvent, error) {
		atomic.AddInt32(&fetchCount, 1)
		return nil, nil, assert.AnError
	}

	sched := New(mgr, fetch, WithFetchInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_ = sched.Run(ctx)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&fetchCount), int32(2))
}

func TestBackoffTracker_GrowsThenResetsOnSuccess(t *testing.T) {
	b := newBackoffTracker(10*time.Millisecond, time.Second)
	assert.Equal(t, time.Duration(0), b.Delay())

	b.RecordFailure()
	first := b.Delay()
	assert.Greater(t, first, time.Duration(0))

	b.RecordFailure()
	second := b.Delay()
	assert.GreaterOrEqual(t, second, first/2)

	b.RecordSuccess()
	assert.Equal(t, 0, b.Streak())
	assert.Equal(t, time.Duration(0), b.Delay())
}
