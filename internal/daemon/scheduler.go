package daemon

import (
	"log/slog"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
)

// Scheduler wraps a gocron scheduler running one periodic task.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
}

// NewScheduler schedules task on def. Runs that would overlap are rescheduled.
func NewScheduler(def gocron.JobDefinition, task func(), logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "create scheduler").Build()
	}
	if _, err := s.NewJob(def, gocron.NewTask(task),
		gocron.WithName("scheduled-build"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		_ = s.Shutdown()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "schedule periodic build").Build()
	}
	return &Scheduler{scheduler: s, logger: logger}, nil
}

// Start begins running the scheduled task.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop waits for a running task to return and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}
