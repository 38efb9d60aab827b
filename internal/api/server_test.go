package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"git.home.luguber.info/inful/navindex/internal/build"
	"git.home.luguber.info/inful/navindex/internal/config"
	"git.home.luguber.info/inful/navindex/internal/docs"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/output"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
	"git.home.luguber.info/inful/navindex/internal/store"
	"git.home.luguber.info/inful/navindex/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type lookupRecorder struct {
	metrics.NoopRecorder
	mu    sync.Mutex
	found []bool
}

func (r *lookupRecorder) IncLookup(found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.found = append(r.found, found)
}

type fakeRebuilder struct {
	result *build.Result
	err    error
	calls  []build.Trigger
}

func (f *fakeRebuilder) Run(_ context.Context, trigger build.Trigger) (*build.Result, error) {
	f.calls = append(f.calls, trigger)
	return f.result, f.err
}

func publish(t *testing.T, buildID, introTitle string) *index.Index {
	t.Helper()
	tree, err := sidebar.Build(slices.Values([]docs.Descriptor{
		{ID: "guide/intro", Title: introTitle, Category: "Guide", Position: 1},
		{ID: "guide/usage", Title: "Usage", Category: "Guide", Position: 2},
		{ID: "api", Title: "API", Category: "Reference"},
	}), []string{"Guide", "Reference"})
	require.NoError(t, err)
	idx, err := index.Publish(tree, sidebar.Resolve(tree, nil), index.WithBuildID(buildID))
	require.NoError(t, err)
	return idx
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.ServerConfig{MetricsPath: "/metrics", CacheSize: 8, Timeout: "5s"}, testutil.DiscardLogger())
	require.NoError(t, err)
	return s
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReadiness(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health").Code)

	rec := do(t, s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, string(ferrors.CategoryRuntime), decode[ferrors.HTTPErrorResponse](t, rec).Code)

	s.SetIndex(publish(t, "b1", "Intro"))
	rec = do(t, s, http.MethodGet, "/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", decode[map[string]any](t, rec)["buildId"])
}

func TestIndexEndpoints_NotReady(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/sidebar", "/api/categories", "/api/docs", "/api/docs/guide/intro"} {
		t.Run(path, func(t *testing.T) {
			assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, path).Code)
		})
	}
}

func TestSidebar(t *testing.T) {
	s := newTestServer(t)
	s.SetIndex(publish(t, "b1", "Intro"))

	rec := do(t, s, http.MethodGet, "/api/sidebar")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", rec.Header().Get("X-Index-Build"))

	sb := decode[output.SidebarFile](t, rec)
	items := sb.DocsSidebars[output.SidebarName]
	require.Len(t, items, 2)
	assert.Equal(t, "Guide", items[0].Label)
	assert.Equal(t, "guide/intro", items[0].Items[0].DocID)
}

func TestCategories(t *testing.T) {
	s := newTestServer(t)
	s.SetIndex(publish(t, "b1", "Intro"))

	rec := do(t, s, http.MethodGet, "/api/categories")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]CategorySummary](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, "Guide", got[0].Name)
	assert.Equal(t, 2, got[0].Documents)
	assert.Equal(t, 1, got[1].Documents)
}

func TestIndexFile(t *testing.T) {
	s := newTestServer(t)
	idx := publish(t, "b1", "Intro")
	s.SetIndex(idx)

	rec := do(t, s, http.MethodGet, "/api/docs")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[output.IndexFile](t, rec)
	assert.Equal(t, idx.Fingerprint(), got.Fingerprint)
	assert.Equal(t, []string{"guide/intro", "guide/usage", "api"}, []string{got.Entries[0].ID, got.Entries[1].ID, got.Entries[2].ID})
}

func TestDocLookup(t *testing.T) {
	s := newTestServer(t)
	rec := &lookupRecorder{}
	s.WithRecorder(rec)
	s.SetIndex(publish(t, "b1", "Intro"))

	res := do(t, s, http.MethodGet, "/api/docs/guide/usage")
	require.Equal(t, http.StatusOK, res.Code)
	doc := decode[output.DocFile](t, res)
	assert.Equal(t, "b1", doc.BuildID)
	assert.Equal(t, "Usage", doc.Title)
	require.NotNil(t, doc.Previous)
	assert.Equal(t, "guide/intro", doc.Previous.ID)
	require.NotNil(t, doc.Next)
	assert.Equal(t, "api", doc.Next.ID)

	// cached
	require.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/docs/guide/usage/").Code)

	res = do(t, s, http.MethodGet, "/api/docs/missing")
	assert.Equal(t, http.StatusNotFound, res.Code)
	body := decode[ferrors.HTTPErrorResponse](t, res)
	assert.Equal(t, string(ferrors.CategoryNotFound), body.Code)
	assert.Equal(t, "missing", body.Details["id"])

	assert.Equal(t, []bool{true, true, false}, rec.found)
}

func TestDocLookup_MissingID(t *testing.T) {
	s := newTestServer(t)
	s.SetIndex(publish(t, "b1", "Intro"))

	rec := do(t, s, http.MethodGet, "/api/docs/")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetIndex_DropsCachedResponses(t *testing.T) {
	s := newTestServer(t)
	s.SetIndex(publish(t, "b1", "Intro"))
	first := decode[output.DocFile](t, do(t, s, http.MethodGet, "/api/docs/guide/intro"))
	assert.Equal(t, "Intro", first.Title)

	s.SetIndex(publish(t, "b2", "Getting started"))
	second := decode[output.DocFile](t, do(t, s, http.MethodGet, "/api/docs/guide/intro"))
	assert.Equal(t, "Getting started", second.Title)
	assert.Equal(t, "b2", second.BuildID)
	assert.Equal(t, 1, s.cache.Len())

	s.SetIndex(nil)
	assert.Equal(t, "b2", s.current.Load().BuildID())
}

func TestBuildHistory(t *testing.T) {
	st, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	ctx := t.Context()
	require.NoError(t, st.RecordBuild(ctx, store.Build{ID: "b1", Status: "success", StartedAt: time.Now()}, nil))
	require.NoError(t, st.RecordBuild(ctx, store.Build{ID: "b2", Status: "failed", FailedStage: "load", StartedAt: time.Now()}, nil))

	s := newTestServer(t)
	s.WithStore(st)

	rec := do(t, s, http.MethodGet, "/api/builds")
	require.Equal(t, http.StatusOK, rec.Code)
	builds := decode[[]store.Build](t, rec)
	require.Len(t, builds, 2)
	assert.Equal(t, "b2", builds[0].ID)

	rec = do(t, s, http.MethodGet, "/api/builds?limit=1")
	assert.Len(t, decode[[]store.Build](t, rec), 1)

	rec = do(t, s, http.MethodGet, "/api/builds?limit=abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/builds/b2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "load", decode[store.Build](t, rec).FailedStage)

	rec = do(t, s, http.MethodGet, "/api/builds/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nope", decode[ferrors.HTTPErrorResponse](t, rec).Details["build_id"])
}

func TestBuildHistory_Disabled(t *testing.T) {
	s := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/builds").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/builds/b1").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodPost, "/api/builds").Code)
}

func TestCreateBuild(t *testing.T) {
	idx := publish(t, "b7", "Intro")
	rb := &fakeRebuilder{result: &build.Result{
		BuildID: "b7", Trigger: build.TriggerAPI, Status: build.StatusSuccess,
		Index: idx, Documents: 3, Duration: 1500 * time.Millisecond,
	}}
	s := newTestServer(t)
	s.WithRebuilder(rb)

	rec := do(t, s, http.MethodPost, "/api/builds")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[BuildResponse](t, rec)
	assert.Equal(t, "b7", resp.ID)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, idx.Fingerprint(), resp.Fingerprint)
	assert.InDelta(t, 1500.0, resp.DurationMS, 0.001)
	assert.Equal(t, []build.Trigger{build.TriggerAPI}, rb.calls)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/api/sidebar").Code)
}

func TestCreateBuild_Failure(t *testing.T) {
	rb := &fakeRebuilder{
		result: &build.Result{BuildID: "b8", Status: build.StatusFailed, FailedStage: build.StageCheckLinks},
		err:    ferrors.ContentError("broken links").Build(),
	}
	s := newTestServer(t)
	s.WithRebuilder(rb)

	rec := do(t, s, http.MethodPost, "/api/builds")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decode[ferrors.HTTPErrorResponse](t, rec)
	assert.Equal(t, "b8", body.Details["build_id"])
	assert.Equal(t, build.StageCheckLinks, body.Details["stage"])
}

func TestMetricsHandler(t *testing.T) {
	s := newTestServer(t)
	s.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("navindex_up 1\n"))
	}))
	rec := do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "navindex_up")
}

func TestRecoverer(t *testing.T) {
	h := recoverer(testutil.DiscardLogger(), ferrors.NewHTTPErrorAdapter(testutil.DiscardLogger()))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode[ferrors.HTTPErrorResponse](t, rec)
	assert.Equal(t, string(ferrors.CategoryInternal), body.Code)
	assert.Equal(t, "/x", body.Details["path"])
}

func TestStartShutdown(t *testing.T) {
	s, err := NewServer(config.ServerConfig{Addr: "127.0.0.1:0", Timeout: "1s"}, testutil.DiscardLogger())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	// Shutdown may race the listener coming up; Start returns nil either way.
	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case err := <-done:
		assert.False(t, errors.Is(err, http.ErrServerClosed))
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
