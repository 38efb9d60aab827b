// Package events announces published indexes on NATS so downstream systems
// (search indexers, CDN purgers) can react to navigation changes.
package events

import (
	"slices"
	"time"

	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// TypeIndexPublished is the Type of IndexPublished events.
const TypeIndexPublished = "index.published"

// IndexPublished is sent after an index has been built and written.
type IndexPublished struct {
	Type        string    `json:"type"`
	BuildID     string    `json:"buildId"`
	Fingerprint string    `json:"fingerprint"`
	Documents   int       `json:"documents"`
	Commit      string    `json:"commit,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	Timestamp   time.Time `json:"timestamp"`

	// Added, Removed and Updated list document ids relative to the
	// previous published build. All ids count as added for the first build.
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Updated []string `json:"updated,omitempty"`
}

// NewIndexPublished describes idx. previous holds the entries of the build
// published before it, nil when there is none.
func NewIndexPublished(idx *index.Index, commit string, previous []sidebar.Entry) IndexPublished {
	ev := IndexPublished{
		Type:        TypeIndexPublished,
		BuildID:     idx.BuildID(),
		Fingerprint: idx.Fingerprint(),
		Documents:   idx.Len(),
		Commit:      commit,
		PublishedAt: idx.PublishedAt(),
	}

	before := make(map[string]sidebar.Entry, len(previous))
	for _, e := range previous {
		before[e.ID] = e
	}
	for e := range idx.Entries() {
		old, ok := before[e.ID]
		switch {
		case !ok:
			ev.Added = append(ev.Added, e.ID)
		case changed(old, e):
			ev.Updated = append(ev.Updated, e.ID)
		}
		delete(before, e.ID)
	}
	for id := range before {
		ev.Removed = append(ev.Removed, id)
	}
	slices.Sort(ev.Removed)
	return ev
}

// changed compares what a reader of the navigation sees: content plus
// position in the prev/next chain.
func changed(a, b sidebar.Entry) bool {
	return a.Fingerprint != b.Fingerprint ||
		a.Title != b.Title ||
		a.Permalink != b.Permalink ||
		a.Category != b.Category ||
		linkID(a.Previous) != linkID(b.Previous) ||
		linkID(a.Next) != linkID(b.Next)
}

func linkID(l *sidebar.Link) string {
	if l == nil {
		return ""
	}
	return l.ID
}
