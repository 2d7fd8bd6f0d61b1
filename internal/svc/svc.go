// Package svc installs and runs the scheduler daemon as an OS service
// (systemd, launchd, Windows SCM) via kardianos/service.
package svc

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/kardianos/service"
)

// Service identity.
const (
	Name        = "ctxopt"
	DisplayName = "Context store optimizer"
	Description = "Prunes and compacts the AI assistant context store on a schedule."
)

const stopTimeout = 30 * time.Second

// RunFunc is the daemon body. It must return once ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Options describes how the installed service invokes the binary.
type Options struct {
	// ConfigPath and ProjectRoot are passed to "schedule"; relative values
	// are made absolute at install time.
	ConfigPath  string
	ProjectRoot string

	// UserService installs a per-user unit where supported.
	UserService bool
}

// Arguments returns the command line the service manager runs.
func (o Options) Arguments() ([]string, error) {
	args := []string{"service", "run"}
	if o.ConfigPath != "" {
		abs, err := filepath.Abs(o.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("svc: resolve config path: %w", err)
		}
		args = append(args, "--config", abs)
	}
	if o.ProjectRoot != "" {
		abs, err := filepath.Abs(o.ProjectRoot)
		if err != nil {
			return nil, fmt.Errorf("svc: resolve project root: %w", err)
		}
		args = append(args, "--project", abs)
	}
	return args, nil
}

// program adapts a RunFunc to service.Interface. Start must not block, so
// the daemon runs in its own goroutine until Stop cancels it.
type program struct {
	run RunFunc

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

// Start implements service.Interface.
func (p *program) Start(_ service.Service) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return errors.New("svc: already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)

	go func() {
		p.done <- p.run(ctx)
	}()
	return nil
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case err := <-done:
		return err
	case <-time.After(stopTimeout):
		return fmt.Errorf("svc: daemon did not stop within %s", stopTimeout)
	}
}

// New builds the service handle. run may be nil for control-only use
// (install, uninstall, start, stop, status).
func New(opts Options, run RunFunc) (service.Service, error) {
	args, err := opts.Arguments()
	if err != nil {
		return nil, err
	}

	cfg := &service.Config{
		Name:        Name,
		DisplayName: DisplayName,
		Description: Description,
		Arguments:   args,
		Option:      service.KeyValue{},
	}
	if opts.UserService {
		cfg.Option["UserService"] = true
	}

	if run == nil {
		run = func(context.Context) error {
			return errors.New("svc: no daemon configured")
		}
	}

	s, err := service.New(&program{run: run}, cfg)
	if err != nil {
		return nil, fmt.Errorf("svc: %w", err)
	}
	return s, nil
}

// Control performs install, uninstall, start, stop or restart.
func Control(s service.Service, action string) error {
	if err := service.Control(s, action); err != nil {
		return fmt.Errorf("svc: %s: %w", action, err)
	}
	return nil
}

// StatusString reports the installed service state in words.
func StatusString(s service.Service) (string, error) {
	st, err := s.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed", nil
	}
	if err != nil {
		return "", fmt.Errorf("svc: status: %w", err)
	}
	switch st {
	case service.StatusRunning:
		return "running", nil
	case service.StatusStopped:
		return "stopped", nil
	default:
		return "unknown", nil
	}
}
