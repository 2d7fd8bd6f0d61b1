package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrJobBusy is returned by Trigger when the job is already running.
var ErrJobBusy = errors.New("cron: job already running")

// ErrUnknownJob is returned by Trigger and NextRun for unregistered names.
var ErrUnknownJob = errors.New("cron: unknown job")

// ErrStopped is returned by Trigger once Stop has been called.
var ErrStopped = errors.New("cron: scheduler stopped")

// Scheduler manages periodic job execution using cron expressions.
// Each job is protected by a per-job mutex so scheduled ticks and manual
// triggers never run the same job in parallel.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    []Job
	names   map[string]struct{}
	locks   map[string]*sync.Mutex
	entries map[string]cron.EntryID
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	running sync.WaitGroup // Add only under mu while !stopped
}

// NewScheduler creates a scheduler. Jobs must be registered before Start().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		names:   make(map[string]struct{}),
		locks:   make(map[string]*sync.Mutex),
		entries: make(map[string]cron.EntryID),
		logger:  logger,
	}
}

// RegisterJob adds a job to the scheduler. Must be called before Start().
// Returns an error if a job with the same name is already registered.
func (s *Scheduler) RegisterJob(j Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := j.Name()
	if _, exists := s.names[name]; exists {
		return fmt.Errorf("cron: duplicate job name %q", name)
	}

	s.names[name] = struct{}{}
	s.locks[name] = &sync.Mutex{}
	s.jobs = append(s.jobs, j)
	return nil
}

// Start initializes the cron scheduler and begins executing registered jobs.
// Returns an error if any job has an invalid schedule expression.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New(cron.WithParser(parser))

	for _, job := range s.jobs {
		id, err := c.AddFunc(job.Schedule(), func() {
			if err := s.run(ctx, job); errors.Is(err, ErrJobBusy) {
				s.logger.Warn("cron: job still running, skipping tick", "job", job.Name())
			}
		})
		if err != nil {
			cancel()
			return fmt.Errorf("cron: invalid schedule for job %q: %w", job.Name(), err)
		}
		s.entries[job.Name()] = id
	}

	s.ctx, s.cancel, s.cron = ctx, cancel, c
	s.cron.Start()
	s.logger.Info("cron: scheduler started", "jobs", len(s.jobs))
	return nil
}

// Trigger runs the named job immediately in the calling goroutine. It
// returns ErrJobBusy without waiting if a run is already in progress.
// The job is cancelled when either ctx or the scheduler stops.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.Lock()
	var job Job
	for _, j := range s.jobs {
		if j.Name() == name {
			job = j
			break
		}
	}
	base := s.ctx
	s.mu.Unlock()

	if job == nil {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	if base != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(base, cancel)
		defer stop()
	}
	return s.run(ctx, job)
}

// NextRun returns the next scheduled activation of the named job. The
// zero time is returned before Start.
func (s *Scheduler) NextRun(name string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.names[name]; !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}
	if s.cron == nil {
		return time.Time{}, nil
	}
	return s.cron.Entry(s.entries[name]).Next, nil
}

func (s *Scheduler) run(ctx context.Context, job Job) error {
	lock := s.locks[job.Name()]
	// TryLock is atomic, so there is no race between check and acquire.
	if !lock.TryLock() {
		return ErrJobBusy
	}
	defer lock.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	s.logger.Debug("cron: job started", "job", job.Name())
	err := job.Run(ctx)
	if err != nil {
		s.logger.Error("cron: job failed", "job", job.Name(), "error", err)
	} else {
		s.logger.Debug("cron: job completed", "job", job.Name())
	}
	return err
}

// Stop cancels in-flight jobs and waits for them to return, or for ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
	c := s.cron
	s.mu.Unlock()

	// Ticks already dispatched by cron need mu to observe stopped, so the
	// wait happens without holding it.
	done := make(chan struct{})
	go func() {
		if c != nil {
			<-c.Stop().Done()
		}
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("cron: scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("cron: stop: %w", ctx.Err())
	}
}
