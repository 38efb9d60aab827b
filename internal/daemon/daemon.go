// Package daemon keeps the published index fresh while serving. It builds once
// on startup, again after changes below the docs directory and on a schedule.
// Requests arriving while a build runs collapse into one follow-up build.
package daemon

import (
	"context"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/navindex/internal/build"
	"git.home.luguber.info/inful/navindex/internal/config"
	"git.home.luguber.info/inful/navindex/internal/logfields"
)

// Builder runs one build.
type Builder interface {
	Run(ctx context.Context, trigger build.Trigger) (*build.Result, error)
}

// Daemon serialises build requests from the watcher, the scheduler and callers.
type Daemon struct {
	cfg      config.DaemonConfig
	builder  Builder
	watchDir string
	schedule gocron.JobDefinition
	logger   *slog.Logger

	requests chan build.Trigger
}

// New creates a daemon building with b. watchDir is observed when cfg.Watch is set.
func New(cfg config.DaemonConfig, b Builder, watchDir string) *Daemon {
	d := &Daemon{
		cfg:      cfg,
		builder:  b,
		watchDir: watchDir,
		logger:   slog.Default(),
		requests: make(chan build.Trigger, 1),
	}
	if cfg.Schedule != "" {
		// Validated with the configuration.
		d.schedule, _ = cfg.JobDefinition()
	}
	return d
}

func (d *Daemon) WithLogger(l *slog.Logger) *Daemon {
	if l != nil {
		d.logger = l.With(slog.String("component", "daemon"))
	}
	return d
}

// Trigger requests a build. It reports false when a build is already pending,
// in which case the pending build covers this request.
func (d *Daemon) Trigger(t build.Trigger) bool {
	select {
	case d.requests <- t:
		return true
	default:
		d.logger.Debug("Build already pending", logfields.Trigger(string(t)))
		return false
	}
}

// Run builds on startup and then on every request until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if d.cfg.Watch {
		w, err := NewWatcher(d.watchDir, d.cfg.DebounceDuration(), d.logger)
		if err != nil {
			return err
		}
		d.logger.Info("Watching docs directory", logfields.Path(d.watchDir))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx, func() { d.Trigger(build.TriggerWatch) }); err != nil {
				d.logger.Warn("File watching stopped", logfields.Path(d.watchDir), logfields.Error(err))
			}
		}()
	}

	if d.schedule != nil {
		s, err := NewScheduler(d.schedule, func() { d.Trigger(build.TriggerScheduled) }, d.logger)
		if err != nil {
			return err
		}
		s.Start()
		defer func() {
			if err := s.Stop(); err != nil {
				d.logger.Warn("Failed to stop scheduler", logfields.Error(err))
			}
		}()
	}

	d.Trigger(build.TriggerStartup)
	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-d.requests:
			d.build(ctx, t)
		}
	}
}

func (d *Daemon) build(ctx context.Context, t build.Trigger) {
	result, err := d.builder.Run(ctx, t)
	if err != nil {
		// The build service logs the failure itself.
		d.logger.Debug("Build did not publish", logfields.Trigger(string(t)), logfields.Error(err))
		return
	}
	d.logger.Debug("Build finished",
		logfields.Trigger(string(t)),
		logfields.BuildID(result.BuildID),
		slog.String("status", string(result.Status)))
}
