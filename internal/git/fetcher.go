package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/navindex/internal/config"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/retry"
)

// SyncResult describes the checkout after a sync.
type SyncResult struct {
	Path    string
	Commit  string
	Changed bool // HEAD moved (or the workspace was cloned)
}

// Fetcher synchronises one source repository into its workspace directory.
type Fetcher struct {
	source   config.SourceConfig
	policy   retry.Policy
	recorder metrics.Recorder
	logger   *slog.Logger
	getenv   func(string) string
}

func NewFetcher(src config.SourceConfig) *Fetcher {
	return &Fetcher{
		source:   src,
		policy:   retry.FromConfig(src.Retry),
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		getenv:   os.Getenv,
	}
}

func (f *Fetcher) WithRecorder(r metrics.Recorder) *Fetcher {
	if r != nil {
		f.recorder = r
	}
	return f
}

func (f *Fetcher) WithLogger(l *slog.Logger) *Fetcher {
	if l != nil {
		f.logger = l
	}
	return f
}

func (f *Fetcher) WithPolicy(p retry.Policy) *Fetcher { f.policy = p; return f }

// Path is the workspace directory holding the checkout.
func (f *Fetcher) Path() string { return f.source.Workspace }

// Sync clones or updates the workspace and returns the checked out commit.
// Failures are returned as git-category classified errors wrapping the typed
// errors of this package.
func (f *Fetcher) Sync(ctx context.Context) (SyncResult, error) {
	start := time.Now()
	var res SyncResult
	err := f.policy.Do(ctx,
		func(ctx context.Context) error {
			var err error
			res, err = f.syncOnce(ctx)
			return err
		},
		func(err error) bool { return !permanent(err) },
		func(n int, delay time.Duration, err error) {
			f.logger.Warn("Source sync failed, retrying",
				logfields.URL(f.source.URL),
				slog.Int("attempt", n),
				slog.Duration("delay", delay),
				logfields.Error(err))
		})
	f.recorder.ObserveFetchDuration(time.Since(start), err == nil)
	if err != nil {
		b := ferrors.GitError("sync documentation source").
			WithCause(err).
			WithContext("url", f.source.URL).
			WithContext("branch", f.source.Branch)
		var authErr *AuthError
		switch {
		case errors.As(err, &authErr):
			b = b.UserAction()
		case permanent(err):
			b = b.WithRetry(ferrors.RetryNever)
		}
		return SyncResult{}, b.Build()
	}
	return res, nil
}

func (f *Fetcher) syncOnce(ctx context.Context) (SyncResult, error) {
	auth, err := f.auth()
	if err != nil {
		return SyncResult{}, err
	}
	path := f.source.Workspace
	if _, statErr := os.Stat(filepath.Join(path, ".git")); statErr == nil {
		return f.update(ctx, path, auth)
	}
	return f.clone(ctx, path, auth)
}

func (f *Fetcher) clone(ctx context.Context, path string, auth transport.AuthMethod) (SyncResult, error) {
	f.logger.Debug("Cloning source repository", logfields.URL(f.source.URL), logfields.Path(path), slog.String("branch", f.source.Branch))
	if err := os.RemoveAll(path); err != nil {
		return SyncResult{}, fmt.Errorf("clear workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return SyncResult{}, fmt.Errorf("create workspace parent: %w", err)
	}
	repo, err := git.PlainCloneContext(ctx, path, false, &git.CloneOptions{
		URL:           f.source.URL,
		ReferenceName: plumbing.NewBranchReferenceName(f.source.Branch),
		SingleBranch:  true,
		Tags:          git.NoTags,
		Auth:          auth,
	})
	if err != nil {
		_ = os.RemoveAll(path)
		return SyncResult{}, classify("clone", f.source.URL, err)
	}
	head, err := repo.Head()
	if err != nil {
		return SyncResult{}, fmt.Errorf("head: %w", err)
	}
	f.logger.Info("Source repository cloned", logfields.URL(f.source.URL), slog.String("commit", short(head.Hash())))
	return SyncResult{Path: path, Commit: head.Hash().String(), Changed: true}, nil
}

func (f *Fetcher) update(ctx context.Context, path string, auth transport.AuthMethod) (SyncResult, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return SyncResult{}, fmt.Errorf("open repo: %w", err)
	}
	var before plumbing.Hash
	if head, herr := repo.Head(); herr == nil {
		before = head.Hash()
	}

	branch := f.source.Branch
	spec := ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []ggitcfg.RefSpec{spec},
		Tags:       git.NoTags,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return SyncResult{}, classify("fetch", f.source.URL, err)
	}

	remote, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return SyncResult{}, classify("fetch", f.source.URL, fmt.Errorf("remote branch %s: %w", branch, err))
	}
	wt, err := repo.Worktree()
	if err != nil {
		return SyncResult{}, fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remote.Hash(), Mode: git.HardReset}); err != nil {
		return SyncResult{}, fmt.Errorf("hard reset: %w", err)
	}

	changed := before != remote.Hash()
	if changed {
		f.logger.Info("Source repository updated", logfields.URL(f.source.URL), slog.String("from", short(before)), slog.String("to", short(remote.Hash())))
	} else {
		f.logger.Debug("Source repository already up-to-date", logfields.URL(f.source.URL), slog.String("commit", short(remote.Hash())))
	}
	return SyncResult{Path: path, Commit: remote.Hash().String(), Changed: changed}, nil
}

// auth returns token basic auth when a token variable is configured.
func (f *Fetcher) auth() (transport.AuthMethod, error) {
	if f.source.TokenEnv == "" {
		return nil, nil
	}
	token := f.getenv(f.source.TokenEnv)
	if token == "" {
		return nil, &AuthError{Op: "auth", URL: f.source.URL, Err: fmt.Errorf("environment variable %s is empty", f.source.TokenEnv)}
	}
	return &githttp.BasicAuth{Username: "token", Password: token}, nil
}

func short(h plumbing.Hash) string {
	if h.IsZero() {
		return ""
	}
	return h.String()[:8]
}
