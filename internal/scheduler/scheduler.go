// Package scheduler drives the periodic ingest-then-cleanup cycle: a
// single-writer loop adapted from the teacher's sync-engine event loop,
// replacing its FIFO event queue with a ticker-driven fetch cycle.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bencan1a/calendarbot/internal/cachemgr"
	"github.com/bencan1a/calendarbot/internal/eventmodel"
)

// maxFetchBackoff caps the extra delay inserted after consecutive
// fetch failures, regardless of how long the failure streak runs.
const maxFetchBackoff = 30 * time.Minute

// FetchFunc retrieves the current upstream event batch. In production
// it is satisfied by the out-of-scope feed fetcher; tests supply a
// stub.
type FetchFunc func(ctx context.Context) ([]eventmodel.Event, []eventmodel.RawEvent, error)

// Scheduler runs FetchFunc on a fixed interval, feeding results through
// the Cache Manager, and runs retention cleanup on a separate, longer
// interval. Run must be called from exactly one goroutine: it is the
// application's single writer task.
type Scheduler struct {
	manager       *cachemgr.Manager
	fetch         FetchFunc
	fetchInterval time.Duration
	cleanupEvery  int
	log           *slog.Logger
	backoff       *backoffTracker
}

// Option configures a Scheduler at construction.
type Option func(*Scheduler)

// WithFetchInterval overrides the default 5-minute fetch interval.
func WithFetchInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.fetchInterval = d }
}

// WithCleanupEvery runs retention cleanup once every n fetch ticks
// instead of the default of every 12 (hourly, at the default 5-minute
// fetch interval).
func WithCleanupEvery(n int) Option {
	return func(s *Scheduler) { s.cleanupEvery = n }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// New constructs a Scheduler that feeds fetch into manager.
func New(manager *cachemgr.Manager, fetch FetchFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		manager:       manager,
		fetch:         fetch,
		fetchInterval: 5 * time.Minute,
		cleanupEvery:  12,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = newBackoffTracker(s.fetchInterval, maxFetchBackoff)
	return s
}

// Run blocks, ticking until ctx is cancelled. Each tick fetches and
// ingests a batch; every cleanupEvery ticks it also runs retention
// cleanup. Ingest and cleanup failures are logged and the loop
// continues: a single bad tick must not stop future ticks from
// refreshing the cache.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler starting", "component", "scheduler", "fetch_interval", s.fetchInterval)

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	tick := 0
	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping: context cancelled", "component", "scheduler")
			return ctx.Err()

		case <-ticker.C:
			if delay := s.backoff.Delay(); delay > 0 {
				s.log.Warn("delaying fetch after failure streak", "component", "scheduler",
					"streak", s.backoff.Streak(), "delay", delay)
				select {
				case <-ctx.Done():
					s.log.Info("scheduler stopping: context cancelled", "component", "scheduler")
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			tick++
			s.runFetchTick(ctx)
			if tick%s.cleanupEvery == 0 {
				s.runCleanupTick(ctx)
			}
		}
	}
}

func (s *Scheduler) runFetchTick(ctx context.Context) {
	batchID := uuid.New().String()

	events, raws, err := s.fetch(ctx)
	if err != nil {
		s.backoff.RecordFailure()
		s.log.Error("fetch failed", "component", "scheduler", "batch_id", batchID,
			"failure_streak", s.backoff.Streak(), "error", err)
		return
	}
	if err := s.manager.Ingest(ctx, events, raws); err != nil {
		s.backoff.RecordFailure()
		s.log.Error("ingest failed", "component", "scheduler", "batch_id", batchID,
			"failure_streak", s.backoff.Streak(), "error", err)
		return
	}

	s.backoff.RecordSuccess()
	s.log.Info("fetch tick complete", "component", "scheduler", "batch_id", batchID, "events", len(events))
}

func (s *Scheduler) runCleanupTick(ctx context.Context) {
	eventsRemoved, rawRemoved, err := s.manager.Cleanup(ctx)
	if err != nil {
		s.log.Error("cleanup failed", "component", "scheduler", "error", err)
		return
	}
	s.log.Info("cleanup tick complete", "component", "scheduler",
		"events_removed", eventsRemoved, "raw_removed", rawRemoved)
}
