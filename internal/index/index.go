// Package index publishes the immutable navigation index: the sidebar tree and
// the flat, id-addressable entry table produced by one build.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"slices"
	"time"

	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// NotFoundError reports a lookup of an id absent from the published index.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%v: %q", derrors.ErrNotFound, e.ID)
}

func (e *NotFoundError) Unwrap() error { return derrors.ErrNotFound }

// Index is a published navigation index. It has no mutators and every
// accessor returns copies, so any number of goroutines may read it without
// synchronisation.
type Index struct {
	tree        *sidebar.Tree
	entries     []sidebar.Entry
	byID        map[string]int
	buildID     string
	publishedAt time.Time
	fingerprint string
}

type publishOptions struct {
	buildID string
	now     func() time.Time
}

// Option customises Publish.
type Option func(*publishOptions)

// WithBuildID tags the index with the id of the build that produced it.
func WithBuildID(id string) Option {
	return func(o *publishOptions) { o.buildID = id }
}

// WithClock overrides the clock used for PublishedAt.
func WithClock(now func() time.Time) Option {
	return func(o *publishOptions) { o.now = now }
}

// Publish deep-copies tree and entries into a read-only Index.
//
// The entries must cover exactly the documents of the tree, in the tree's
// pre-order. Otherwise Publish fails with ErrIndexMismatch and nothing is
// published.
func Publish(tree *sidebar.Tree, entries []sidebar.Entry, opts ...Option) (*Index, error) {
	o := publishOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if tree == nil || tree.Root == nil {
		return nil, fmt.Errorf("%w: no tree", derrors.ErrIndexMismatch)
	}
	if err := verify(tree, entries); err != nil {
		return nil, err
	}

	idx := &Index{
		tree:        tree.Clone(),
		entries:     make([]sidebar.Entry, len(entries)),
		byID:        make(map[string]int, len(entries)),
		buildID:     o.buildID,
		publishedAt: o.now().UTC(),
	}
	for i, e := range entries {
		idx.entries[i] = e.Clone()
		idx.byID[e.ID] = i
	}
	idx.fingerprint = fingerprint(idx.entries)
	return idx, nil
}

func verify(tree *sidebar.Tree, entries []sidebar.Entry) error {
	i := 0
	for d := range tree.Docs() {
		if i >= len(entries) {
			return fmt.Errorf("%w: document %q has no entry", derrors.ErrIndexMismatch, d.ID)
		}
		if entries[i].ID != d.ID {
			return fmt.Errorf("%w: entry %d is %q, tree has %q", derrors.ErrIndexMismatch, i, entries[i].ID, d.ID)
		}
		i++
	}
	if i != len(entries) {
		return fmt.Errorf("%w: entry %q is not in the tree", derrors.ErrIndexMismatch, entries[i].ID)
	}
	return nil
}

func fingerprint(entries []sidebar.Entry) string {
	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s\x00%s\x00%s\n", e.ID, e.Permalink, e.Fingerprint)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Lookup returns the entry published under id, or *NotFoundError.
func (x *Index) Lookup(id string) (sidebar.Entry, error) {
	i, ok := x.byID[id]
	if !ok {
		return sidebar.Entry{}, &NotFoundError{ID: id}
	}
	return x.entries[i].Clone(), nil
}

// Categories yields copies of the top-level categories in declaration order.
// The sequence may be ranged over any number of times.
func (x *Index) Categories() iter.Seq[*sidebar.CategoryNode] {
	return func(yield func(*sidebar.CategoryNode) bool) {
		for c := range x.tree.Categories() {
			if !yield(c.Clone()) {
				return
			}
		}
	}
}

// Entries yields copies of all entries in navigation order.
func (x *Index) Entries() iter.Seq[sidebar.Entry] {
	return func(yield func(sidebar.Entry) bool) {
		for _, e := range x.entries {
			if !yield(e.Clone()) {
				return
			}
		}
	}
}

// IDs returns the entry ids in navigation order.
func (x *Index) IDs() []string {
	ids := make([]string, len(x.entries))
	for i, e := range x.entries {
		ids[i] = e.ID
	}
	return ids
}

// Tree returns a copy of the navigation tree.
func (x *Index) Tree() *sidebar.Tree { return x.tree.Clone() }

func (x *Index) Len() int               { return len(x.entries) }
func (x *Index) BuildID() string        { return x.buildID }
func (x *Index) PublishedAt() time.Time { return x.publishedAt }

// Fingerprint hashes entry ids, permalinks and content fingerprints. Two
// builds of unchanged content publish the same fingerprint.
func (x *Index) Fingerprint() string { return x.fingerprint }

// Contains reports whether id is published.
func (x *Index) Contains(id string) bool {
	_, ok := x.byID[id]
	return ok
}

// CategoryNames returns the names of the top-level categories.
func (x *Index) CategoryNames() []string {
	names := make([]string, 0, len(x.tree.Root.Children))
	for c := range x.tree.Categories() {
		names = append(names, c.Name)
	}
	return slices.Clip(names)
}
