package build

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/navindex/internal/config"
	"git.home.luguber.info/inful/navindex/internal/content"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	"git.home.luguber.info/inful/navindex/internal/events"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/git"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/pipeline"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
	"git.home.luguber.info/inful/navindex/internal/store"
)

// Fetcher brings the source checkout up to date.
type Fetcher interface {
	Sync(ctx context.Context) (git.SyncResult, error)
	Path() string
}

// Writer persists a published index as files.
type Writer interface {
	Write(idx *index.Index) error
}

// Service orchestrates builds. Optional collaborators left unset are skipped.
type Service struct {
	cfg       *config.Config
	fetcher   Fetcher
	writer    Writer
	store     store.Store
	publisher events.Publisher
	recorder  metrics.Recorder
	logger    *slog.Logger
	newID     func() string
	now       func() time.Time

	mu          sync.Mutex // one build at a time
	last        atomic.Pointer[index.Index]
	subscribers []func(*index.Index)
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		cfg:       cfg,
		publisher: events.NoopPublisher{},
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// WithFetcher syncs the source repository before every build; the docs
// directory is then resolved inside the checkout.
func (s *Service) WithFetcher(f Fetcher) *Service { s.fetcher = f; return s }

func (s *Service) WithWriter(w Writer) *Service { s.writer = w; return s }

func (s *Service) WithStore(st store.Store) *Service { s.store = st; return s }

func (s *Service) WithPublisher(p events.Publisher) *Service {
	if p != nil {
		s.publisher = p
	}
	return s
}

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

// WithIDGenerator replaces the build id generator (for tests).
func (s *Service) WithIDGenerator(f func() string) *Service { s.newID = f; return s }

// WithClock replaces the clock (for tests).
func (s *Service) WithClock(now func() time.Time) *Service { s.now = now; return s }

// Subscribe registers fn to receive every successfully built index. fn runs
// synchronously at the end of Run.
func (s *Service) Subscribe(fn func(*index.Index)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Current returns the index of the last successful build, or nil.
func (s *Service) Current() *index.Index { return s.last.Load() }

// DocsDir is the directory documents are loaded from.
func (s *Service) DocsDir() string {
	if s.fetcher != nil {
		return filepath.Join(s.fetcher.Path(), s.cfg.Content.DocsDir)
	}
	return s.cfg.Content.DocsDir
}

// Run executes one build. The returned Result is always non-nil.
func (s *Service) Run(ctx context.Context, trigger Trigger) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := &Result{BuildID: s.newID(), Trigger: trigger, StartTime: s.now()}
	log := s.logger.With(logfields.BuildID(result.BuildID), logfields.Trigger(string(trigger)))

	if s.fetcher != nil {
		err := s.stage(ctx, StageFetch, func() error {
			synced, err := s.fetcher.Sync(ctx)
			result.Commit = synced.Commit
			return err
		})
		if err != nil {
			return s.fail(ctx, log, result, StageFetch, err)
		}
	}

	var loaded *content.Result
	err := s.stage(ctx, StageLoad, func() error {
		var lerr error
		loaded, lerr = content.Load(ctx, content.Options{
			DocsDir:         s.DocsDir(),
			RootCategory:    s.cfg.Content.RootCategory,
			MinHeadingLevel: s.cfg.Content.MinHeadingLevel,
			MaxHeadingLevel: s.cfg.Content.MaxHeadingLevel,
			IncludeDrafts:   s.cfg.Content.IncludeDrafts,
			Logger:          log,
		})
		return lerr
	})
	if err != nil {
		return s.fail(ctx, log, result, StageLoad, err)
	}
	result.Drafts = loaded.Drafts

	err = s.stage(ctx, StageCheckLinks, func() error {
		return loaded.CheckLinks(content.BrokenLinkMode(s.cfg.Content.OnBrokenLinks), log)
	})
	if err != nil {
		return s.fail(ctx, log, result, StageCheckLinks, err)
	}

	pres, err := pipeline.NewService().
		Embedded().
		WithRecorder(s.recorder).
		WithLogger(s.logger).
		WithClock(s.now).
		Run(ctx, s.pipelineRequest(result.BuildID, loaded))
	if err != nil {
		// The pipeline has already classified and logged the failure.
		result.FailedStage = pres.FailedStage
		result.Status = Status(pres.Status)
		s.finish(result)
		s.recorder.IncBuildOutcome(outcomeOf(result.Status))
		s.record(ctx, log, result, err, nil)
		return result, err
	}
	idx := pres.Index

	if s.writer != nil {
		if err := s.stage(ctx, StageWrite, func() error { return s.writer.Write(idx) }); err != nil {
			return s.fail(ctx, log, result, StageWrite, err)
		}
	}

	previous := s.previous(ctx, log)
	result.Index = idx
	result.Documents = idx.Len()
	result.Status = StatusSuccess
	s.finish(result)
	s.recorder.IncBuildOutcome(metrics.BuildSucceeded)
	s.recorder.SetPublishedDocs(idx.Len())
	if previous.fingerprint != "" && previous.fingerprint == idx.Fingerprint() {
		result.Status = StatusUnchanged
		s.recorder.IncBuildOutcome(metrics.BuildUnchanged)
	}
	s.last.Store(idx)

	if result.Status == StatusSuccess {
		s.record(ctx, log, result, nil, idx)
		ev := events.NewIndexPublished(idx, result.Commit, previous.entries)
		if perr := s.publisher.PublishIndex(ctx, ev); perr != nil {
			log.Warn("Index event not published", logfields.Error(perr))
		}
	} else {
		s.record(ctx, log, result, nil, nil)
		log.Info("Index unchanged", logfields.Count(idx.Len()))
	}

	for _, fn := range s.subscribers {
		fn(idx)
	}
	return result, nil
}

func (s *Service) pipelineRequest(buildID string, loaded *content.Result) pipeline.Request {
	order := loaded.Order
	if len(s.cfg.Content.CategoryOrder) > 0 {
		order = s.cfg.Content.CategoryOrder
	}
	return pipeline.Request{
		BuildID:     buildID,
		Descriptors: loaded.Descriptors,
		Order:       order,
		Categories:  mergeCategories(loaded.Categories, s.cfg.Content.Categories),
		Permalinker: sidebar.SitePermalinker{
			RouteBasePath: s.cfg.Site.RouteBasePath,
			TrailingSlash: s.cfg.Site.TrailingSlash,
			EditURLBase:   s.cfg.Site.EditURL,
			DocsDir:       s.cfg.Content.DocsDir,
		},
	}
}

// mergeCategories overlays the configured metadata on the discovered one,
// field by field.
func mergeCategories(discovered, configured map[string]sidebar.CategoryMeta) map[string]sidebar.CategoryMeta {
	out := maps.Clone(discovered)
	if out == nil {
		out = make(map[string]sidebar.CategoryMeta, len(configured))
	}
	for name, c := range configured {
		m := out[name]
		if c.Label != "" {
			m.Label = c.Label
		}
		if c.Parent != "" {
			m.Parent = c.Parent
		}
		if c.Position != nil {
			m.Position = c.Position
		}
		if c.Collapsible != nil {
			m.Collapsible = c.Collapsible
		}
		if c.Collapsed != nil {
			m.Collapsed = c.Collapsed
		}
		out[name] = m
	}
	return out
}

type previousBuild struct {
	fingerprint string
	entries     []sidebar.Entry
}

// previous returns the last published build, preferring the in-memory index
// and falling back to the history store after a restart.
func (s *Service) previous(ctx context.Context, log *slog.Logger) previousBuild {
	if last := s.last.Load(); last != nil {
		return previousBuild{fingerprint: last.Fingerprint(), entries: slices.Collect(last.Entries())}
	}
	if s.store == nil {
		return previousBuild{}
	}
	b, err := s.store.LatestPublished(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrBuildNotFound) {
			log.Warn("Could not read previous build", logfields.Error(err))
		}
		return previousBuild{}
	}
	entries, err := s.store.Entries(ctx, b.ID)
	if err != nil {
		log.Warn("Could not read previous entries", logfields.BuildID(b.ID), logfields.Error(err))
	}
	return previousBuild{fingerprint: b.Fingerprint, entries: entries}
}

func (s *Service) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
		return err
	}
	start := s.now()
	err := fn()
	s.recorder.ObserveStageDuration(name, s.now().Sub(start))
	switch {
	case err == nil:
		s.recorder.IncStageResult(name, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		s.recorder.IncStageResult(name, metrics.ResultCanceled)
	default:
		s.recorder.IncStageResult(name, metrics.ResultFailed)
	}
	return err
}

func (s *Service) fail(ctx context.Context, log *slog.Logger, result *Result, stage string, err error) (*Result, error) {
	result.FailedStage = stage
	s.finish(result)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		result.Status = StatusCanceled
		s.recorder.IncBuildOutcome(metrics.BuildCanceled)
		log.Warn("Build canceled", logfields.Stage(stage))
		s.record(ctx, log, result, err, nil)
		return result, err
	}

	result.Status = StatusFailed
	s.recorder.IncBuildOutcome(metrics.BuildFailed)
	classified := classify(stage, err).WithContext("build_id", result.BuildID)
	log.Error("Build failed", logfields.Stage(stage), logfields.Error(err))
	s.record(ctx, log, result, classified, nil)
	return result, classified
}

func (s *Service) finish(result *Result) {
	result.EndTime = s.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	s.recorder.ObserveBuildDuration(result.Duration)
}

func outcomeOf(st Status) metrics.BuildOutcome {
	if st == StatusCanceled {
		return metrics.BuildCanceled
	}
	return metrics.BuildFailed
}

// record stores the build in the history. Storage failures are logged and do
// not fail the build.
func (s *Service) record(ctx context.Context, log *slog.Logger, result *Result, buildErr error, idx *index.Index) {
	if s.store == nil {
		return
	}
	b := store.Build{
		ID:          result.BuildID,
		Status:      string(result.Status),
		Trigger:     string(result.Trigger),
		Commit:      result.Commit,
		Documents:   result.Documents,
		StartedAt:   result.StartTime,
		Duration:    result.Duration,
		FailedStage: result.FailedStage,
	}
	if result.Index != nil {
		b.Fingerprint = result.Index.Fingerprint()
	}
	if buildErr != nil {
		b.Error = buildErr.Error()
	}
	var entries []sidebar.Entry
	if idx != nil {
		entries = slices.Collect(idx.Entries())
	}

	// A canceled build still deserves a history row.
	ctx = context.WithoutCancel(ctx)
	if err := s.store.RecordBuild(ctx, b, entries); err != nil {
		log.Warn("Build not recorded", logfields.Error(err))
		return
	}
	if keep := s.cfg.Storage.KeepBuilds; keep > 0 {
		if n, err := s.store.Prune(ctx, keep); err != nil {
			log.Warn("Build history not pruned", logfields.Error(err))
		} else if n > 0 {
			log.Debug("Pruned build history", logfields.Count(n))
		}
	}
}

// classify maps orchestration failures to error categories. Errors that are
// already classified keep their category.
func classify(stage string, err error) *ferrors.ClassifiedError {
	if ce, ok := ferrors.AsClassified(err); ok {
		return ce
	}
	var (
		b      *ferrors.ErrorBuilder
		broken *content.BrokenLinksError
	)
	switch {
	case errors.As(err, &broken):
		b = ferrors.ContentError("documents link to missing files").
			WithContext("broken_links", len(broken.Links))
	case errors.Is(err, derrors.ErrDocsDirNotFound):
		b = ferrors.ConfigError("documentation directory not found")
	case errors.Is(err, derrors.ErrFrontMatter):
		b = ferrors.ContentError("invalid front matter")
	case stage == StageWrite || stage == StageLoad:
		b = ferrors.FileSystemError("file system operation failed")
	default:
		return pipeline.Classify(stage, err)
	}
	return b.WithCause(err).WithContext("stage", stage).Build()
}
