package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

// ErrBusy is returned by RunNow while another run is in progress.
var ErrBusy = errors.New("forecast task already running")

// Runner runs a batch of searches, as pipeline.Pipeline does.
type Runner interface {
	RunAll(ctx context.Context, models []string, granularities []timeseries.Granularity) ([]*search.Result, error)
}

// Scheduler re-runs the forecast pipeline on a cron schedule. At most one
// run is in flight: a tick or RunNow that finds a run still going is
// skipped.
type Scheduler struct {
	cron          *cron.Cron
	runner        Runner
	models        []string
	granularities []timeseries.Granularity
	logger        *zap.Logger
	ctx           context.Context

	running sync.Mutex
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
}

// New creates a Scheduler whose jobs stop early once ctx is done.
func New(ctx context.Context, runner Runner, models []string, granularities []timeseries.Granularity, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger.Sugar()}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:        runner,
		models:        models,
		granularities: granularities,
		logger:        logger,
		ctx:           ctx,
	}
}

// Register schedules the forecast job; schedule has a leading seconds field.
func (s *Scheduler) Register(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, s.forecastTask); err != nil {
		return fmt.Errorf("register forecast task: %w", err)
	}
	s.logger.Info("forecast task registered", zap.String("cron", schedule))
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started")
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunNow executes the forecast job immediately and returns its error, or
// ErrBusy without running when a run is already in progress.
func (s *Scheduler) RunNow() error {
	if !s.running.TryLock() {
		return ErrBusy
	}
	defer s.running.Unlock()
	s.runForecast()
	_, err := s.LastRun()
	return err
}

// LastRun reports when the last job finished and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}

// Next returns the next scheduled activation, or the zero time.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) forecastTask() {
	if !s.running.TryLock() {
		s.logger.Info("forecast task still running, skipping tick")
		return
	}
	defer s.running.Unlock()
	s.runForecast()
}

func (s *Scheduler) runForecast() {
	start := time.Now()
	s.logger.Info("running forecast task")

	out, err := s.runner.RunAll(s.ctx, s.models, s.granularities)
	if err != nil {
		s.logger.Error("forecast task finished with errors", zap.Error(err), zap.Int("succeeded", len(out)))
	} else {
		s.logger.Info("forecast task finished", zap.Int("succeeded", len(out)), zap.Duration("elapsed", time.Since(start)))
	}

	s.mu.Lock()
	s.lastRun, s.lastErr = time.Now(), err
	s.mu.Unlock()
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
