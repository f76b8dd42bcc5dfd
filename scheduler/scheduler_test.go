package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sartorproj/fuelcast/search"
	"github.com/sartorproj/fuelcast/timeseries"
)

type fakeRunner struct {
	calls   atomic.Int32
	err     error
	done    chan struct{}
	release chan struct{} // when set, RunAll blocks until it is closed
}

func (f *fakeRunner) RunAll(ctx context.Context, models []string, grans []timeseries.Granularity) ([]*search.Result, error) {
	f.calls.Add(1)
	if f.done != nil {
		select {
		case f.done <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*search.Result, 0, len(models)*len(grans))
	for _, g := range grans {
		for _, m := range models {
			out = append(out, &search.Result{Model: m, Granularity: g})
		}
	}
	return out, nil
}

func TestRunNow(t *testing.T) {
	runner := &fakeRunner{}
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(context.Background(), runner,
		[]string{search.ModelARIMA, search.ModelSARIMA},
		[]timeseries.Granularity{timeseries.Monthly}, zap.New(core))

	if err := s.RunNow(); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", runner.calls.Load())
	}
	last, err := s.LastRun()
	if last.IsZero() || err != nil {
		t.Errorf("Unexpected last run %v, %v", last, err)
	}

	entries := logs.FilterMessage("forecast task finished").All()
	if len(entries) != 1 || entries[0].ContextMap()["succeeded"] != int64(2) {
		t.Errorf("Expected a finish log with 2 successes, got %v", entries)
	}
}

func TestRunNowError(t *testing.T) {
	boom := errors.New("boom")
	s := New(context.Background(), &fakeRunner{err: boom}, nil, nil, nil)

	if err := s.RunNow(); !errors.Is(err, boom) {
		t.Errorf("Expected the runner error, got %v", err)
	}
}

func TestOverlappingRunsAreSkipped(t *testing.T) {
	runner := &fakeRunner{done: make(chan struct{}, 1), release: make(chan struct{})}
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(context.Background(), runner, []string{search.ModelARIMA},
		[]timeseries.Granularity{timeseries.Monthly}, zap.New(core))

	first := make(chan error, 1)
	go func() { first <- s.RunNow() }()
	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("First run did not start")
	}

	if err := s.RunNow(); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy while a run is in progress, got %v", err)
	}
	s.forecastTask()
	if n := logs.FilterMessage("forecast task still running, skipping tick").Len(); n != 1 {
		t.Errorf("Expected the cron tick to be skipped once, got %d", n)
	}

	close(runner.release)
	if err := <-first; err != nil {
		t.Fatalf("First run: %v", err)
	}
	if runner.calls.Load() != 1 {
		t.Errorf("Expected exactly 1 call, got %d", runner.calls.Load())
	}

	// The guard is released once the run finishes.
	if err := s.RunNow(); err != nil {
		t.Errorf("RunNow after the first run: %v", err)
	}
	if runner.calls.Load() != 2 {
		t.Errorf("Expected 2 calls, got %d", runner.calls.Load())
	}
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	s := New(context.Background(), &fakeRunner{}, nil, nil, nil)
	if err := s.Register("every monday"); err == nil {
		t.Error("Expected an error for an invalid schedule")
	}
	if !s.Next().IsZero() {
		t.Error("No entry should be registered")
	}
}

func TestScheduledRun(t *testing.T) {
	runner := &fakeRunner{done: make(chan struct{}, 1)}
	s := New(context.Background(), runner, []string{search.ModelARIMA},
		[]timeseries.Granularity{timeseries.Daily}, nil)

	if err := s.Register("@every 1s"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	defer s.Stop()

	if s.Next().IsZero() {
		t.Error("Expected a next activation after Start")
	}
	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("Scheduled job did not run")
	}
}
