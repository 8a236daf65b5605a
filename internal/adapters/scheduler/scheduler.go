// Package scheduler re-runs a job on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/topten/pkg/logger"
	"github.com/robfig/cron/v3"
)

const defaultJobTimeout = time.Minute

// ErrNilJob is returned when New is called without a job.
var ErrNilJob = errors.New("job must not be nil")

// Job is the scheduled work. ctx is cancelled after the job timeout or on Stop.
type Job func(ctx context.Context)

// Option applies a configuration option to the Scheduler.
type Option func(*Scheduler)

// WithJobTimeout bounds a single run of the job.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithLogger sets the logger used for schedule events.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLocation evaluates the schedule in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.location = loc
		}
	}
}

// Scheduler runs one job on a standard cron spec. Overlapping runs are skipped.
type Scheduler struct {
	mu         sync.Mutex
	cron       *cron.Cron
	entry      cron.EntryID
	job        Job
	jobTimeout time.Duration
	location   *time.Location
	logger     logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (standard five-field cron or a descriptor like "@every 1h")
// and prepares the job without starting it.
func New(spec string, job Job, opts ...Option) (*Scheduler, error) {
	if job == nil {
		return nil, ErrNilJob
	}
	s := &Scheduler{
		job:        job,
		jobTimeout: defaultJobTimeout,
		location:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(&cronLogger{l: s.logger})),
	)
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Start begins cron execution in its own goroutine.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Start()
	s.logger.Info(s.ctx, "refresh schedule started", logger.Any("next", s.cron.Entry(s.entry).Next))
}

// Stop halts the schedule, cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancel()
	<-s.cron.Stop().Done()
}

// Next reports the next scheduled run, zero if the scheduler is not running.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(s.ctx, s.jobTimeout)
	defer cancel()
	s.job(ctx)
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	l logger.Logger
}

func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(context.Background(), msg, fields(keysAndValues)...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(context.Background(), msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []interface{}) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
