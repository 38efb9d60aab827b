package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/navindex/internal/config"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/retry"
	"git.home.luguber.info/inful/navindex/internal/testutil"
)

type fetchRecorder struct {
	metrics.NoopRecorder
	mu      sync.Mutex
	results []bool
}

func (r *fetchRecorder) ObserveFetchDuration(_ time.Duration, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, success)
}

// seedRemote creates a bare remote plus a working clone that pushes to it.
func seedRemote(t *testing.T) (bare string, work *git.Repository, workPath string) {
	t.Helper()
	tmp := t.TempDir()
	bare = filepath.Join(tmp, "remote.git")
	testutil.InitRepo(t, bare, true)

	workPath = filepath.Join(tmp, "seed")
	work = testutil.InitRepo(t, workPath, false)
	_, err := work.CreateRemote(&ggitcfg.RemoteConfig{Name: "origin", URLs: []string{bare}})
	require.NoError(t, err)
	return bare, work, workPath
}

func testFetcher(t *testing.T, url string) *Fetcher {
	t.Helper()
	src := config.SourceConfig{
		URL:       url,
		Branch:    "master",
		Workspace: filepath.Join(t.TempDir(), "ws", "source"),
	}
	return NewFetcher(src).
		WithLogger(testutil.DiscardLogger()).
		WithPolicy(retry.Policy{Mode: config.RetryBackoffFixed, Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 1})
}

func TestSync_CloneThenUpdate(t *testing.T) {
	bare, work, workPath := seedRemote(t)
	first := testutil.CommitFile(t, work, workPath, "docs/intro.md", "# Intro\n", "intro")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))

	rec := &fetchRecorder{}
	f := testFetcher(t, bare).WithRecorder(rec)
	ctx := context.Background()

	res, err := f.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, first.String(), res.Commit)
	assert.FileExists(t, filepath.Join(f.Path(), "docs", "intro.md"))

	res, err = f.Sync(ctx)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, first.String(), res.Commit)

	second := testutil.CommitFile(t, work, workPath, "docs/next.md", "# Next\n", "next")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))

	res, err = f.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, second.String(), res.Commit)
	assert.FileExists(t, filepath.Join(f.Path(), "docs", "next.md"))

	assert.Equal(t, []bool{true, true, true}, rec.results)
}

func TestSync_DiscardsLocalEdits(t *testing.T) {
	bare, work, workPath := seedRemote(t)
	testutil.CommitFile(t, work, workPath, "docs/intro.md", "# Intro\n", "intro")
	require.NoError(t, work.Push(&git.PushOptions{RemoteName: "origin"}))

	f := testFetcher(t, bare)
	_, err := f.Sync(context.Background())
	require.NoError(t, err)

	target := filepath.Join(f.Path(), "docs", "intro.md")
	require.NoError(t, os.WriteFile(target, []byte("local edit\n"), 0o600))

	res, err := f.Sync(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Changed)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n", string(data))
}

func TestSync_MissingRepositoryIsPermanent(t *testing.T) {
	rec := &fetchRecorder{}
	f := testFetcher(t, filepath.Join(t.TempDir(), "missing.git")).WithRecorder(rec)

	_, err := f.Sync(context.Background())
	require.Error(t, err)

	var nf *NotFoundError
	assert.ErrorAs(t, err, &nf)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryGit))
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.False(t, ce.CanRetry())
	assert.Equal(t, ferrors.RetryNever, ce.RetryStrategy())
	assert.Equal(t, []bool{false}, rec.results)
	assert.NoDirExists(t, f.Path())
}

func TestSync_MissingToken(t *testing.T) {
	f := testFetcher(t, "https://example.invalid/docs.git")
	f.source.TokenEnv = "NAVINDEX_TEST_TOKEN"
	f.getenv = func(string) string { return "" }

	_, err := f.Sync(context.Background())
	var ae *AuthError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "auth", ae.Op)
	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.False(t, ce.CanRetry())
	assert.Equal(t, ferrors.RetryUserAction, ce.RetryStrategy())
}

func TestAuth_Token(t *testing.T) {
	f := testFetcher(t, "https://example.invalid/docs.git")
	f.source.TokenEnv = "NAVINDEX_TEST_TOKEN"
	f.getenv = func(string) string { return "secret" }

	auth, err := f.auth()
	require.NoError(t, err)
	basic, ok := auth.(*githttp.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "token", basic.Username)
	assert.Equal(t, "secret", basic.Password)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
		check     func(error) bool
	}{
		{"auth sentinel", transport.ErrAuthenticationRequired, true, func(err error) bool {
			var e *AuthError
			return errors.As(err, &e)
		}},
		{"not found sentinel", transport.ErrRepositoryNotFound, true, func(err error) bool {
			var e *NotFoundError
			return errors.As(err, &e)
		}},
		{"unsupported scheme", errors.New("unsupported scheme \"ftp\""), true, func(err error) bool {
			var e *UnsupportedProtocolError
			return errors.As(err, &e)
		}},
		{"network", errors.New("connection reset by peer"), false, func(err error) bool {
			return err.Error() == "connection reset by peer"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("fetch", "u", tt.err)
			assert.True(t, tt.check(got))
			assert.Equal(t, tt.permanent, permanent(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, classify("fetch", "u", nil))
}
