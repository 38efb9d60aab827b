// Package testutil holds fixtures shared by package tests: docs trees on
// disk and throwaway git repositories.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// WriteTree writes files below root. Keys are slash separated paths.
func WriteTree(t testing.TB, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644)) //nolint:gosec // test fixture
	}
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// InitRepo initializes a git repository at path.
func InitRepo(t testing.TB, path string, bare bool) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(path, bare)
	require.NoError(t, err, "init git repo")
	return repo
}

// CommitFile writes name below the worktree at dir and commits it.
func CommitFile(t testing.TB, repo *git.Repository, dir, name, content, msg string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	require.NoError(t, err)
	WriteTree(t, dir, map[string]string{name: content})
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}
