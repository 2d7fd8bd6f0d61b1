package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flemzord/ctxopt/internal/config"
	"github.com/flemzord/ctxopt/internal/cron"
	"github.com/flemzord/ctxopt/internal/gateway"
	"github.com/flemzord/ctxopt/internal/metrics"
	"github.com/flemzord/ctxopt/internal/optimizer"
)

// daemon owns the components rebuilt on every config reload. Metrics and
// the run tracker survive reloads so counters stay monotonic.
type daemon struct {
	projectRoot string
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracker     *gateway.Tracker

	mu        sync.Mutex
	cfg       *config.Config
	scheduler *cron.Scheduler
	gateway   *gateway.Gateway
}

// apply replaces the running scheduler and status server with ones built
// from cfg. An in-flight run is cancelled at its next step boundary. If the
// new components fail to start, the previous configuration is started again
// and the error is returned.
func (d *daemon) apply(_ context.Context, cfg *config.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.startLocked(cfg); err != nil {
		if d.cfg != nil {
			if rerr := d.startLocked(d.cfg); rerr != nil {
				d.logger.Error("previous configuration could not be restored", "error", rerr)
			} else {
				d.logger.Warn("new configuration not applied, previous one restored", "error", err)
			}
		}
		return err
	}

	if d.cfg != nil && d.cfg.Tracing != cfg.Tracing {
		d.logger.Warn("tracing settings changed; restart to apply")
	}
	d.cfg = cfg
	return nil
}

// startLocked stops the running components and starts ones built from cfg.
// On error nothing is left running.
func (d *daemon) startLocked(cfg *config.Config) error {
	optCfg := cfg.Optimizer(d.projectRoot)
	opt := optimizer.New(optCfg, optimizer.WithLogger(d.logger))

	sched := cron.NewScheduler(d.logger)
	job := &cron.OptimizeJob{
		Runner:       opt,
		Logger:       d.logger,
		ScheduleExpr: cfg.Schedule.Cron,
		OnReport:     d.onReport(cfg.Metrics.Textfile),
	}
	if err := sched.RegisterJob(job); err != nil {
		return err
	}

	d.stopLocked()

	if err := sched.Start(); err != nil {
		return err
	}
	d.scheduler = sched

	if cfg.Gateway.Listen != "" {
		gw := gateway.New(gateway.Config{
			Listen: cfg.Gateway.Listen,
			Token:  cfg.Gateway.Token,
		}, gateway.Params{
			Tracker: d.tracker,
			Logger:  d.logger,
			Metrics: d.metrics.Handler(),
			Trigger: func(ctx context.Context) error {
				return sched.Trigger(ctx, cron.OptimizeJobName)
			},
			NextRun: func() time.Time {
				next, _ := sched.NextRun(cron.OptimizeJobName)
				return next
			},
			StorePath: optCfg.StorePath,
		})
		if err := gw.Start(); err != nil {
			d.stopLocked()
			return err
		}
		d.gateway = gw
	}
	return nil
}

// onReport feeds a finished run to the tracker, the metrics, and the
// optional textfile.
func (d *daemon) onReport(textfile string) func(*optimizer.Report) {
	return func(rep *optimizer.Report) {
		d.tracker.Record(rep)
		d.metrics.ObserveReport(rep)
		if textfile == "" {
			return
		}
		if err := d.metrics.WriteTextfile(textfile); err != nil {
			d.logger.Warn("metrics textfile not written", "path", textfile, "error", err)
		}
	}
}

// runNow triggers the optimize job outside its schedule.
func (d *daemon) runNow(ctx context.Context) {
	d.mu.Lock()
	sched := d.scheduler
	d.mu.Unlock()
	if sched == nil {
		return
	}

	err := sched.Trigger(ctx, cron.OptimizeJobName)
	switch {
	case errors.Is(err, cron.ErrJobBusy):
		d.logger.Info("optimization already running, skipping immediate run")
	case errors.Is(err, cron.ErrStopped):
		d.logger.Debug("scheduler replaced before the immediate run started")
	case err != nil && ctx.Err() == nil:
		d.logger.Error("immediate optimization failed", "error", err)
	}
}

func (d *daemon) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *daemon) stopLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if d.gateway != nil {
		if err := d.gateway.Stop(ctx); err != nil {
			d.logger.Warn("gateway stop failed", "error", err)
		}
		d.gateway = nil
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			d.logger.Warn("scheduler stop failed", "error", err)
		}
		d.scheduler = nil
	}
}
