package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/navindex/internal/config"
	"git.home.luguber.info/inful/navindex/internal/events"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/git"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/output"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
	"git.home.luguber.info/inful/navindex/internal/store"
	"git.home.luguber.info/inful/navindex/internal/testutil"
)

type recordingPublisher struct {
	events []events.IndexPublished
}

func (p *recordingPublisher) PublishIndex(_ context.Context, ev events.IndexPublished) error {
	p.events = append(p.events, ev)
	return nil
}
func (p *recordingPublisher) Close() error { return nil }

type fakeFetcher struct {
	path   string
	commit string
	err    error
}

func (f *fakeFetcher) Sync(context.Context) (git.SyncResult, error) {
	if f.err != nil {
		return git.SyncResult{}, f.err
	}
	return git.SyncResult{Path: f.path, Commit: f.commit, Changed: true}, nil
}
func (f *fakeFetcher) Path() string { return f.path }

type outcomeRecorder struct {
	metrics.NoopRecorder
	mu        sync.Mutex
	outcomes  []metrics.BuildOutcome
	published []int
}

func (r *outcomeRecorder) IncBuildOutcome(o metrics.BuildOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *outcomeRecorder) SetPublishedDocs(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, n)
}

type failingWriter struct{}

func (failingWriter) Write(*index.Index) error { return errors.New("disk full") }

func docsFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"intro.md":             "---\nsidebar_position: 1\n---\n# Intro\n\nRead the [guide](guide/setup.md).\n",
		"guide/_category_.yml": "label: Guide\n",
		"guide/setup.md":       "---\nsidebar_position: 1\n---\n# Setup\n",
		"guide/usage.md":       "---\nsidebar_position: 2\n---\n# Usage\n",
	})
	return root
}

func testConfig(t *testing.T, docsDir string, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(fmt.Appendf(nil, "version: \"1\"\ncontent:\n  docs_dir: %q\n%s", docsDir, extra))
	require.NoError(t, err)
	return cfg
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("build-%d", n)
	}
}

func newTestService(t *testing.T, cfg *config.Config) (*Service, *store.SQLiteStore, *recordingPublisher) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	pub := &recordingPublisher{}
	svc := NewService(cfg).
		WithStore(st).
		WithPublisher(pub).
		WithLogger(testutil.DiscardLogger()).
		WithIDGenerator(sequentialIDs())
	return svc, st, pub
}

func TestRun_Success(t *testing.T) {
	docsDir := docsFixture(t)
	outDir := filepath.Join(t.TempDir(), "out")
	svc, st, pub := newTestService(t, testConfig(t, docsDir, ""))
	svc.WithWriter(&output.Writer{Dir: outDir, Logger: testutil.DiscardLogger()})

	var delivered *index.Index
	svc.Subscribe(func(idx *index.Index) { delivered = idx })

	res, err := svc.Run(t.Context(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "build-1", res.BuildID)
	assert.Equal(t, 3, res.Documents)
	require.NotNil(t, res.Index)
	assert.Equal(t, []string{"intro", "guide/setup", "guide/usage"}, res.Index.IDs())
	assert.Same(t, res.Index, delivered)
	assert.Same(t, res.Index, svc.Current())

	assert.FileExists(t, filepath.Join(outDir, output.IndexFileName))
	assert.FileExists(t, filepath.Join(outDir, output.DocsDirName, "guide", "setup.json"))

	b, err := st.GetBuild(t.Context(), "build-1")
	require.NoError(t, err)
	assert.Equal(t, string(StatusSuccess), b.Status)
	assert.Equal(t, string(TriggerManual), b.Trigger)
	assert.Equal(t, res.Index.Fingerprint(), b.Fingerprint)

	require.Len(t, pub.events, 1)
	assert.Equal(t, []string{"intro", "guide/setup", "guide/usage"}, pub.events[0].Added)
}

func TestRun_UnchangedThenUpdated(t *testing.T) {
	docsDir := docsFixture(t)
	svc, st, pub := newTestService(t, testConfig(t, docsDir, ""))
	ctx := t.Context()

	_, err := svc.Run(ctx, TriggerStartup)
	require.NoError(t, err)

	res, err := svc.Run(ctx, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.True(t, res.Status.IsSuccess())
	assert.Len(t, pub.events, 1, "unchanged builds are not announced")

	latest, err := st.LatestPublished(ctx)
	require.NoError(t, err)
	assert.Equal(t, "build-1", latest.ID)

	testutil.WriteTree(t, docsDir, map[string]string{"guide/usage.md": "---\nsidebar_position: 2\n---\n# Usage\n\nNew text.\n"})
	res, err = svc.Run(ctx, TriggerWatch)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
	require.Len(t, pub.events, 2)
	assert.Equal(t, []string{"guide/usage"}, pub.events[1].Updated)
	assert.Empty(t, pub.events[1].Added)

	builds, err := st.ListBuilds(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, builds, 3)
}

func TestRun_UnchangedAfterRestart(t *testing.T) {
	docsDir := docsFixture(t)
	cfg := testConfig(t, docsDir, "")
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	first := NewService(cfg).WithStore(st).WithLogger(testutil.DiscardLogger()).WithIDGenerator(func() string { return "first" })
	_, err = first.Run(t.Context(), TriggerManual)
	require.NoError(t, err)

	second := NewService(cfg).WithStore(st).WithLogger(testutil.DiscardLogger()).WithIDGenerator(func() string { return "second" })
	res, err := second.Run(t.Context(), TriggerStartup)
	require.NoError(t, err)
	assert.Equal(t, StatusUnchanged, res.Status)
	assert.NotNil(t, second.Current(), "an unchanged build is still served")
}

func TestRun_Failures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(t *testing.T) *config.Config
		stage    string
		category ferrors.ErrorCategory
	}{
		{
			name: "missing docs dir",
			setup: func(t *testing.T) *config.Config {
				return testConfig(t, filepath.Join(t.TempDir(), "missing"), "")
			},
			stage:    StageLoad,
			category: ferrors.CategoryConfig,
		},
		{
			name: "broken link",
			setup: func(t *testing.T) *config.Config {
				dir := docsFixture(t)
				testutil.WriteTree(t, dir, map[string]string{"guide/usage.md": "# Usage\n\nSee [gone](gone.md).\n"})
				return testConfig(t, dir, "")
			},
			stage:    StageCheckLinks,
			category: ferrors.CategoryContent,
		},
		{
			name: "invalid front matter",
			setup: func(t *testing.T) *config.Config {
				dir := docsFixture(t)
				testutil.WriteTree(t, dir, map[string]string{"bad.md": "---\ntitle: [unclosed\n---\n# Bad\n"})
				return testConfig(t, dir, "")
			},
			stage:    StageLoad,
			category: ferrors.CategoryContent,
		},
		{
			name: "category missing from configured order",
			setup: func(t *testing.T) *config.Config {
				return testConfig(t, docsFixture(t), "  category_order: [Docs]\n")
			},
			stage:    "tree",
			category: ferrors.CategoryConfig,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, st, pub := newTestService(t, tt.setup(t))
			res, err := svc.Run(t.Context(), TriggerManual)
			require.Error(t, err)
			assert.Equal(t, StatusFailed, res.Status)
			assert.Equal(t, tt.stage, res.FailedStage)
			assert.Nil(t, res.Index)
			assert.Equal(t, tt.category, ferrors.GetCategory(err))
			assert.Empty(t, pub.events)
			assert.Nil(t, svc.Current())

			b, gerr := st.GetBuild(t.Context(), res.BuildID)
			require.NoError(t, gerr)
			assert.Equal(t, string(StatusFailed), b.Status)
			assert.Equal(t, tt.stage, b.FailedStage)
			assert.NotEmpty(t, b.Error)
		})
	}
}

func TestRun_BrokenLinksWarn(t *testing.T) {
	dir := docsFixture(t)
	testutil.WriteTree(t, dir, map[string]string{"guide/usage.md": "# Usage\n\nSee [gone](gone.md).\n"})
	svc, _, _ := newTestService(t, testConfig(t, dir, "  on_broken_links: warn\n"))

	res, err := svc.Run(t.Context(), TriggerManual)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, res.Status)
}

func TestRun_WithFetcher(t *testing.T) {
	checkout := t.TempDir()
	docsDir := filepath.Join(checkout, "docs")
	docsFixtureAt(t, docsDir)

	cfg := testConfig(t, "docs", "")
	svc, _, pub := newTestService(t, cfg)
	svc.WithFetcher(&fakeFetcher{path: checkout, commit: "abc123"})

	res, err := svc.Run(t.Context(), TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.Commit)
	assert.Equal(t, docsDir, svc.DocsDir())
	require.Len(t, pub.events, 1)
	assert.Equal(t, "abc123", pub.events[0].Commit)
}

func TestRun_FetchFailure(t *testing.T) {
	cfg := testConfig(t, "docs", "")
	svc, _, _ := newTestService(t, cfg)
	cause := ferrors.GitError("sync documentation source").WithCause(errors.New("network down")).Build()
	svc.WithFetcher(&fakeFetcher{path: t.TempDir(), err: cause})

	res, err := svc.Run(t.Context(), TriggerManual)
	require.Error(t, err)
	assert.Equal(t, StageFetch, res.FailedStage)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
}

func TestRun_Canceled(t *testing.T) {
	svc, st, _ := newTestService(t, testConfig(t, docsFixture(t), ""))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	res, err := svc.Run(ctx, TriggerManual)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusCanceled, res.Status)

	b, gerr := st.GetBuild(t.Context(), res.BuildID)
	require.NoError(t, gerr)
	assert.Equal(t, string(StatusCanceled), b.Status)
}

func TestRun_RecordsOutcomeMetrics(t *testing.T) {
	t.Run("success then unchanged", func(t *testing.T) {
		rec := &outcomeRecorder{}
		svc, _, _ := newTestService(t, testConfig(t, docsFixture(t), ""))
		svc.WithRecorder(rec)
		for range 2 {
			_, err := svc.Run(t.Context(), TriggerManual)
			require.NoError(t, err)
		}
		assert.Equal(t, []metrics.BuildOutcome{
			metrics.BuildSucceeded,
			metrics.BuildSucceeded, metrics.BuildUnchanged,
		}, rec.outcomes)
		assert.Equal(t, []int{3, 3}, rec.published)
	})

	t.Run("write failure", func(t *testing.T) {
		rec := &outcomeRecorder{}
		svc, _, _ := newTestService(t, testConfig(t, docsFixture(t), ""))
		svc.WithRecorder(rec).WithWriter(failingWriter{})
		res, err := svc.Run(t.Context(), TriggerManual)
		require.Error(t, err)
		assert.Equal(t, StageWrite, res.FailedStage)
		assert.Equal(t, []metrics.BuildOutcome{metrics.BuildFailed}, rec.outcomes)
		assert.Empty(t, rec.published)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		rec := &outcomeRecorder{}
		svc, _, _ := newTestService(t, testConfig(t, docsFixture(t), "  category_order: [Docs]\n"))
		svc.WithRecorder(rec)
		_, err := svc.Run(t.Context(), TriggerManual)
		require.Error(t, err)
		assert.Equal(t, []metrics.BuildOutcome{metrics.BuildFailed}, rec.outcomes)
	})

	t.Run("canceled", func(t *testing.T) {
		rec := &outcomeRecorder{}
		svc, _, _ := newTestService(t, testConfig(t, docsFixture(t), ""))
		svc.WithRecorder(rec)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		res, err := svc.Run(ctx, TriggerManual)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StatusCanceled, res.Status)
		assert.Equal(t, []metrics.BuildOutcome{metrics.BuildCanceled}, rec.outcomes)
		assert.Empty(t, rec.published)
	})
}

func TestRun_PrunesHistory(t *testing.T) {
	svc, st, _ := newTestService(t, testConfig(t, docsFixture(t), "storage:\n  keep_builds: 2\n"))
	for range 4 {
		_, err := svc.Run(t.Context(), TriggerManual)
		require.NoError(t, err)
	}
	builds, err := st.ListBuilds(t.Context(), 0)
	require.NoError(t, err)
	assert.Len(t, builds, 2)
}

func TestMergeCategories(t *testing.T) {
	pos := 3
	collapsed := false
	discovered := map[string]sidebar.CategoryMeta{
		"guide": {Label: "Guide", Position: &pos},
	}
	configured := map[string]sidebar.CategoryMeta{
		"guide": {Label: "User Guide", Collapsed: &collapsed},
		"extra": {Parent: "guide"},
	}
	got := mergeCategories(discovered, configured)

	assert.Equal(t, "User Guide", got["guide"].Label)
	assert.Equal(t, &pos, got["guide"].Position)
	assert.Equal(t, &collapsed, got["guide"].Collapsed)
	assert.Equal(t, "guide", got["extra"].Parent)
	assert.Equal(t, "Guide", discovered["guide"].Label, "inputs are not modified")
}

func docsFixtureAt(t *testing.T, root string) {
	t.Helper()
	testutil.WriteTree(t, root, map[string]string{"intro.md": "# Intro\n", "guide/setup.md": "# Setup\n"})
}
