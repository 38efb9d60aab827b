// Package store keeps the history of index builds in SQLite: one row per
// build attempt plus the flat entries of every successful build.
package store

import (
	"context"
	"time"

	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// Build is the persisted summary of one build attempt.
type Build struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Trigger     string        `json:"trigger,omitempty"`
	Commit      string        `json:"commit,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Documents   int           `json:"documents"`
	StartedAt   time.Time     `json:"startedAt"`
	Duration    time.Duration `json:"durationNs"`
	FailedStage string        `json:"failedStage,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Store persists build history.
type Store interface {
	// RecordBuild stores b and, when entries is non-empty, the entries it published.
	RecordBuild(ctx context.Context, b Build, entries []sidebar.Entry) error

	// GetBuild returns the build with the id, or ErrBuildNotFound.
	GetBuild(ctx context.Context, id string) (Build, error)

	// ListBuilds returns up to limit builds, newest first.
	ListBuilds(ctx context.Context, limit int) ([]Build, error)

	// LatestPublished returns the newest build with stored entries, or ErrBuildNotFound.
	LatestPublished(ctx context.Context) (Build, error)

	// Entries returns the entries of a build in navigation order.
	Entries(ctx context.Context, buildID string) ([]sidebar.Entry, error)

	// Prune keeps the newest keep builds and deletes the rest.
	Prune(ctx context.Context, keep int) (int, error)

	Close() error
}
