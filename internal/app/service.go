// Package service refreshes the leaderboard from its backends and holds the
// latest snapshot for the HTTP API.
package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/topten/internal/adapters/scheduler"
	"github.com/okian/topten/internal/adapters/source"
	"github.com/okian/topten/internal/domain/model"
	"github.com/okian/topten/internal/domain/ranking"
	"github.com/okian/topten/internal/domain/series"
	"github.com/okian/topten/pkg/logger"
	"github.com/okian/topten/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

const defaultRefreshTimeout = 30 * time.Second

// Snapshot is the result of one successful refresh. It is never mutated
// after it is published.
type Snapshot struct {
	ID             string               `json:"id"`
	FetchedAt      time.Time            `json:"fetchedAt"`
	MostRecentDate string               `json:"mostRecentDate,omitempty"`
	Observations   int                  `json:"observations"`
	Shows          int                  `json:"shows"`
	Rankings       []model.RankingEntry `json:"rankings"`
	Chart          series.Chart         `json:"chart"`
}

// Service owns refreshing and serving the leaderboard.
type Service struct {
	mu        sync.RWMutex
	refreshMu sync.Mutex

	rankings source.RankingSource
	catalog  source.ShowCatalog

	// Configuration
	parallel        bool
	refreshSchedule string
	refreshTimeout  time.Duration
	now             func() time.Time

	// State
	current   *Snapshot
	refreshes int
	failures  int
	lastErr   error
	started   bool
	scheduler *scheduler.Scheduler

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParallelFetch issues the rankings and catalog reads concurrently.
func WithParallelFetch(parallel bool) Option {
	return func(s *Service) {
		s.parallel = parallel
	}
}

// WithRefreshSchedule re-runs Refresh on a cron spec once started. Empty disables it.
func WithRefreshSchedule(spec string) Option {
	return func(s *Service) {
		s.refreshSchedule = spec
	}
}

// WithRefreshTimeout bounds the startup and scheduled refreshes.
func WithRefreshTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.refreshTimeout = d
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service reading from rankings and catalog.
func New(rankings source.RankingSource, catalog source.ShowCatalog, opts ...Option) *Service {
	s := &Service{
		rankings:       rankings,
		catalog:        catalog,
		parallel:       true,
		refreshTimeout: defaultRefreshTimeout,
		now:            time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start performs the initial refresh and, when configured, starts the
// refresh schedule. A failed initial refresh is logged and leaves the
// service empty; only an unusable schedule is returned as an error.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.mu.Unlock()

	s.logger.Info(ctx, "starting leaderboard service...")

	var sched *scheduler.Scheduler
	if s.refreshSchedule != "" {
		var err error
		sched, err = scheduler.New(s.refreshSchedule, func(ctx context.Context) {
			_, _ = s.Refresh(ctx)
		}, scheduler.WithJobTimeout(s.refreshTimeout), scheduler.WithLogger(s.logger))
		if err != nil {
			return err
		}
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.refreshTimeout)
	_, _ = s.Refresh(refreshCtx)
	cancel()

	s.mu.Lock()
	s.scheduler = sched
	s.started = true
	s.mu.Unlock()

	if sched != nil {
		sched.Start()
	}

	s.logger.Info(ctx, "leaderboard service started",
		logger.Bool("parallelFetch", s.parallel),
		logger.String("refreshSchedule", s.refreshSchedule),
	)
	return nil
}

// Stop halts the refresh schedule. The last snapshot stays readable.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	sched := s.scheduler
	s.scheduler = nil
	s.started = false
	s.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	s.logger.Info(context.Background(), "leaderboard service stopped")
}

// Refresh fetches observations and the catalog, aggregates them and
// publishes a new snapshot. When either fetch fails nothing is aggregated,
// the previous snapshot stays in place and the fetch error is returned.
// Failed fetches are not retried here.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	log := s.log()
	start := s.now()
	began := time.Now()

	observations, catalog, err := s.fetch(ctx)
	if err != nil {
		s.mu.Lock()
		s.failures++
		s.lastErr = err
		s.mu.Unlock()

		metrics.RecordRefresh(metrics.ResultFailure, sinceMs(began))
		log.Error(ctx, "fetch failed", logger.Error(err))
		return Snapshot{}, err
	}

	snap := Snapshot{
		ID:           uuid.NewString(),
		FetchedAt:    start,
		Observations: len(observations),
		Shows:        len(catalog),
		Rankings:     ranking.Aggregate(observations, catalog),
		Chart:        series.Build(observations),
	}
	if latest, ok := ranking.MostRecentDate(observations); ok {
		snap.MostRecentDate = latest.Format(model.DateLayout)
	}

	s.mu.Lock()
	s.current = &snap
	s.refreshes++
	s.lastErr = nil
	s.mu.Unlock()

	recent := 0
	for _, e := range snap.Rankings {
		if e.InRecentRanking {
			recent++
		}
	}
	metrics.RecordRefresh(metrics.ResultSuccess, sinceMs(began))
	metrics.UpdateSnapshot(float64(start.Unix()), snap.Observations, len(snap.Rankings), recent, snap.Shows)

	log.Info(ctx, "leaderboard refreshed",
		logger.String("snapshot", snap.ID),
		logger.Int("observations", snap.Observations),
		logger.Int("entries", len(snap.Rankings)),
		logger.String("mostRecentDate", snap.MostRecentDate),
		logger.Duration("took", time.Since(began)),
	)
	return snap, nil
}

// fetch runs both reads, concurrently when enabled. Either failure fails the pair.
func (s *Service) fetch(ctx context.Context) ([]model.Observation, []model.ShowMeta, error) {
	var (
		observations []model.Observation
		catalog      []model.ShowMeta
	)

	fetchObservations := func(ctx context.Context) error {
		t := time.Now()
		var err error
		observations, err = s.rankings.FetchObservations(ctx)
		metrics.RecordFetch(source.OpObservations, sinceMs(t), err)
		return err
	}
	fetchCatalog := func(ctx context.Context) error {
		t := time.Now()
		var err error
		catalog, err = s.catalog.FetchAll(ctx)
		metrics.RecordFetch(source.OpCatalog, sinceMs(t), err)
		return err
	}

	if s.parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error { return fetchObservations(gctx) })
		g.Go(func() error { return fetchCatalog(gctx) })
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
		return observations, catalog, nil
	}

	if err := fetchObservations(ctx); err != nil {
		return nil, nil, err
	}
	if err := fetchCatalog(ctx); err != nil {
		return nil, nil, err
	}
	return observations, catalog, nil
}

// Snapshot returns the latest published snapshot, false before the first success.
func (s *Service) Snapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return Snapshot{}, false
	}
	return *s.current, true
}

// Ready reports whether a snapshot has been published.
func (s *Service) Ready() bool {
	_, ok := s.Snapshot()
	return ok
}

// Rankings returns up to limit leaderboard entries, all of them when limit <= 0.
// The slice is a copy and safe to modify.
func (s *Service) Rankings(_ context.Context, limit int) ([]model.RankingEntry, error) {
	snap, ok := s.Snapshot()
	if !ok {
		return []model.RankingEntry{}, nil
	}
	entries := snap.Rankings
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return slices.Clone(entries), nil
}

// Chart returns the rank-over-time series of the latest snapshot.
func (s *Service) Chart(_ context.Context) (series.Chart, error) {
	snap, ok := s.Snapshot()
	if !ok {
		return series.Build(nil), nil
	}
	return snap.Chart, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":         s.started,
		"parallelFetch":   s.parallel,
		"refreshSchedule": s.refreshSchedule,
		"refreshes":       s.refreshes,
		"failures":        s.failures,
		"ready":           s.current != nil,
	}
	if s.lastErr != nil {
		stats["lastError"] = s.lastErr.Error()
	}
	if s.current != nil {
		stats["snapshotId"] = s.current.ID
		stats["fetchedAt"] = s.current.FetchedAt
		stats["mostRecentDate"] = s.current.MostRecentDate
		stats["observations"] = s.current.Observations
		stats["entries"] = len(s.current.Rankings)
	}
	if s.scheduler != nil {
		stats["nextRefresh"] = s.scheduler.Next()
	}
	return stats
}

func (s *Service) log() logger.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return logger.Get()
	}
	return s.logger
}

func sinceMs(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000
}
