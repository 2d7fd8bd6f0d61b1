package cron

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// simpleJob is a minimal Job for scheduler tests.
type simpleJob struct {
	name     string
	schedule string
	runFunc  func(ctx context.Context) error
	mu       sync.Mutex
	calls    int
}

func (j *simpleJob) Name() string     { return j.name }
func (j *simpleJob) Schedule() string { return j.schedule }
func (j *simpleJob) Run(ctx context.Context) error {
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	if j.runFunc != nil {
		return j.runFunc(ctx)
	}
	return nil
}

func TestScheduler_RegisterJob_DuplicateName(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())

	err := s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err != nil {
		t.Fatalf("first registration should succeed: %v", err)
	}

	err = s.RegisterJob(&simpleJob{name: "test", schedule: "* * * * *"})
	if err == nil {
		t.Fatal("duplicate registration should fail")
	}
}

func TestScheduler_Start_InvalidSchedule(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "bad", schedule: "invalid"})

	err := s.Start()
	if err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "noop", schedule: "* * * * *"})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_NilLogger(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil) // should not panic
	if s.logger == nil {
		t.Fatal("logger should default to slog.Default()")
	}
}

func TestScheduler_TriggerNoParallelExecution(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	var concurrent, maxConcurrent atomic.Int32

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "slow",
		schedule: "0 3 * * *",
		runFunc: func(_ context.Context) error {
			c := concurrent.Add(1)
			for {
				old := maxConcurrent.Load()
				if c <= old || maxConcurrent.CompareAndSwap(old, c) {
					break
				}
			}
			close(started)
			<-release
			concurrent.Add(-1)
			return nil
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first := make(chan error, 1)
	go func() { first <- s.Trigger(context.Background(), "slow") }()
	<-started

	var wg sync.WaitGroup
	var busy atomic.Int32
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if errors.Is(s.Trigger(context.Background(), "slow"), ErrJobBusy) {
				busy.Add(1)
			}
		}()
	}
	wg.Wait()
	close(release)

	if err := <-first; err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if busy.Load() != 10 {
		t.Errorf("busy = %d, want 10", busy.Load())
	}
	if maxConcurrent.Load() > 1 {
		t.Errorf("max concurrent = %d, want <= 1", maxConcurrent.Load())
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_TriggerUnknown(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	if err := s.Trigger(context.Background(), "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
	if _, err := s.NextRun("nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("expected ErrUnknownJob, got %v", err)
	}
}

func TestScheduler_TriggerBeforeStart(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "manual", schedule: "0 3 * * *"}
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)

	if err := s.Trigger(context.Background(), "manual"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if job.calls != 1 {
		t.Errorf("calls = %d, want 1", job.calls)
	}
}

func TestScheduler_TriggerPropagatesError(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "0 3 * * *",
		runFunc:  func(context.Context) error { return want },
	})

	if err := s.Trigger(context.Background(), "failing"); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestScheduler_StopCancelsTriggeredJob(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "blocking",
		schedule: "0 3 * * *",
		runFunc: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Trigger(context.Background(), "blocking") }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestScheduler_TriggerAfterStop(t *testing.T) {
	t.Parallel()

	job := &simpleJob{name: "nightly", schedule: "0 3 * * *"}
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(job)
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if err := s.Trigger(context.Background(), "nightly"); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	if job.calls != 0 {
		t.Errorf("job ran %d times after stop", job.calls)
	}
}

func TestScheduler_TriggerDuringStop(t *testing.T) {
	t.Parallel()

	var active atomic.Int32
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "short",
		schedule: "0 3 * * *",
		runFunc: func(ctx context.Context) error {
			active.Add(1)
			defer active.Add(-1)
			select {
			case <-ctx.Done():
			case <-time.After(time.Millisecond):
			}
			return nil
		},
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	stopTriggers := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stopTriggers:
					return
				default:
					_ = s.Trigger(context.Background(), "short")
				}
			}
		}()
	}

	time.Sleep(5 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if n := active.Load(); n != 0 {
		t.Errorf("%d runs still active after Stop returned", n)
	}

	close(stopTriggers)
	wg.Wait()
	if n := active.Load(); n != 0 {
		t.Errorf("%d runs started after Stop", n)
	}
}

func TestScheduler_NextRun(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{name: "nightly", schedule: "0 3 * * *"})

	next, err := s.NextRun("nightly")
	if err != nil || !next.IsZero() {
		t.Fatalf("before start: next=%v err=%v", next, err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	next, err = s.NextRun("nightly")
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	if next.IsZero() || next.Hour() != 3 || next.Minute() != 0 {
		t.Errorf("unexpected next run %v", next)
	}
}

func TestValidateSchedule(t *testing.T) {
	t.Parallel()

	if err := ValidateSchedule("0 3 * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	for _, bad := range []string{"", "every day", "0 3 * * * *", "61 * * * *"} {
		if err := ValidateSchedule(bad); err == nil {
			t.Errorf("ValidateSchedule(%q) should fail", bad)
		}
	}
}

func TestScheduler_JobError(t *testing.T) {
	t.Parallel()

	// Verify that job errors don't crash the scheduler.
	s := NewScheduler(slog.Default())
	_ = s.RegisterJob(&simpleJob{
		name:     "failing",
		schedule: "* * * * *",
		runFunc: func(_ context.Context) error {
			return errors.New("job failed")
		},
	})

	if err := s.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// The scheduler should still be running after a job error.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	t.Parallel()

	s := NewScheduler(slog.Default())
	// Stop without Start should not panic.
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
