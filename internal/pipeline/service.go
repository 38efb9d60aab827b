package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/navindex/internal/docs"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// Stage names, also used as metric and log labels.
const (
	StageRegister = "register"
	StageTree     = "tree"
	StageLinks    = "links"
	StagePublish  = "publish"
)

// Request is the input of one build.
type Request struct {
	// BuildID tags the build; a new id is generated when empty.
	BuildID     string
	Descriptors []docs.Descriptor
	Order       []string
	Categories  map[string]sidebar.CategoryMeta
	// Permalinker defaults to sidebar.SitePermalinker{} when nil.
	Permalinker sidebar.Permalinker
}

// Status is the final state of a build.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// Result reports a finished build. Index is nil unless Status is StatusSuccess.
type Result struct {
	BuildID   string
	Status    Status
	Index     *index.Index
	Documents int
	// FailedStage names the stage that aborted the build.
	FailedStage string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// Service executes builds. The zero value is not usable; use NewService.
type Service struct {
	recorder metrics.Recorder
	logger   *slog.Logger
	newID    func() string
	now      func() time.Time
	embedded bool
}

func NewService() *Service {
	return &Service{
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// WithRecorder sets the metrics recorder.
func (s *Service) WithRecorder(r metrics.Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

func (s *Service) WithLogger(l *slog.Logger) *Service {
	if l != nil {
		s.logger = l
	}
	return s
}

// Embedded leaves the build outcome, build duration and published document
// metrics to the caller, which runs further steps before the index counts as
// published. Stage metrics are still recorded.
func (s *Service) Embedded() *Service {
	s.embedded = true
	return s
}

// WithIDGenerator replaces the build id generator (for tests).
func (s *Service) WithIDGenerator(f func() string) *Service {
	s.newID = f
	return s
}

// WithClock replaces the clock (for tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run executes the build. The returned Result is always non-nil.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{BuildID: req.BuildID, StartTime: s.now()}
	if result.BuildID == "" {
		result.BuildID = s.newID()
	}
	log := s.logger.With(logfields.BuildID(result.BuildID))
	log.Info("Index build started", logfields.Count(len(req.Descriptors)))

	registry := docs.NewRegistry()
	err := s.stage(ctx, log, StageRegister, func() error {
		return registry.RegisterAll(req.Descriptors)
	})
	if err != nil {
		return s.fail(log, result, StageRegister, err)
	}

	var tree *sidebar.Tree
	err = s.stage(ctx, log, StageTree, func() error {
		var berr error
		tree, berr = sidebar.Build(registry.All(), req.Order, sidebar.WithCategories(req.Categories))
		return berr
	})
	if err != nil {
		return s.fail(log, result, StageTree, err)
	}

	var entries []sidebar.Entry
	err = s.stage(ctx, log, StageLinks, func() error {
		entries = sidebar.Resolve(tree, req.Permalinker)
		return nil
	})
	if err != nil {
		return s.fail(log, result, StageLinks, err)
	}

	var idx *index.Index
	err = s.stage(ctx, log, StagePublish, func() error {
		var perr error
		idx, perr = index.Publish(tree, entries, index.WithBuildID(result.BuildID), index.WithClock(s.now))
		return perr
	})
	if err != nil {
		return s.fail(log, result, StagePublish, err)
	}

	result.Status = StatusSuccess
	result.Index = idx
	result.Documents = idx.Len()
	s.finish(result)
	if !s.embedded {
		s.recorder.IncBuildOutcome(metrics.BuildSucceeded)
		s.recorder.SetPublishedDocs(idx.Len())
	}
	log.Info("Index build completed",
		logfields.Count(idx.Len()),
		logfields.DurationMS(float64(result.Duration.Milliseconds())))
	return result, nil
}

func (s *Service) stage(ctx context.Context, log *slog.Logger, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
		return err
	}
	start := s.now()
	err := fn()
	d := s.now().Sub(start)
	s.recorder.ObserveStageDuration(name, d)
	if err != nil {
		s.recorder.IncStageResult(name, metrics.ResultFailed)
		return err
	}
	s.recorder.IncStageResult(name, metrics.ResultSuccess)
	log.Debug("Stage complete", logfields.Stage(name), logfields.DurationMS(float64(d.Microseconds())/1000))
	return nil
}

func (s *Service) fail(log *slog.Logger, result *Result, stage string, err error) (*Result, error) {
	result.FailedStage = stage
	s.finish(result)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		result.Status = StatusCanceled
		s.outcome(metrics.BuildCanceled)
		log.Warn("Index build canceled", logfields.Stage(stage))
		return result, err
	}

	result.Status = StatusFailed
	s.outcome(metrics.BuildFailed)
	classified := Classify(stage, err).WithContext("build_id", result.BuildID)
	log.Error("Index build failed", logfields.Stage(stage), logfields.Error(err))
	return result, classified
}

func (s *Service) finish(result *Result) {
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	if !s.embedded {
		s.recorder.ObserveBuildDuration(result.Duration)
	}
}

func (s *Service) outcome(o metrics.BuildOutcome) {
	if !s.embedded {
		s.recorder.IncBuildOutcome(o)
	}
}

// Classify wraps a stage error into a ClassifiedError. The original error
// stays in the chain, so errors.Is and errors.As still match the typed
// domain errors.
func Classify(stage string, err error) *ferrors.ClassifiedError {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce
	}

	var b *ferrors.ErrorBuilder
	switch {
	case errors.Is(err, derrors.ErrDuplicateID):
		b = ferrors.AlreadyExistsError("duplicate document id")
	case errors.Is(err, derrors.ErrUnknownCategory):
		b = ferrors.ConfigError("document references an undeclared category")
	case errors.Is(err, derrors.ErrInvalidCategoryOrder):
		b = ferrors.ConfigError("invalid category order")
	case errors.Is(err, derrors.ErrInvalidDescriptor):
		b = ferrors.ValidationError("invalid document descriptor")
	case errors.Is(err, derrors.ErrIndexMismatch):
		b = ferrors.IndexError("index does not match navigation tree")
	case errors.Is(err, derrors.ErrNotFound):
		b = ferrors.NotFoundError("document not found")
	default:
		b = ferrors.InternalError("index build failed")
	}
	return b.WithCause(err).WithContext("stage", stage).Build()
}
