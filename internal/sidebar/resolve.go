package sidebar

import (
	"git.home.luguber.info/inful/navindex/internal/docs"
	"git.home.luguber.info/inful/navindex/internal/markdown"
)

// Link points at a neighbouring document.
type Link struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
}

// Entry is one navigable document of the flattened tree.
type Entry struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Category    string             `json:"category"`
	Permalink   string             `json:"permalink"`
	EditURL     string             `json:"editUrl,omitempty"`
	Source      string             `json:"source,omitempty"`
	Fingerprint string             `json:"fingerprint,omitempty"`
	Previous    *Link              `json:"previous,omitempty"`
	Next        *Link              `json:"next,omitempty"`
	TOC         []markdown.Heading `json:"toc,omitempty"`
}

// Clone returns a copy sharing no pointers or slices with e.
func (e Entry) Clone() Entry {
	if e.Previous != nil {
		p := *e.Previous
		e.Previous = &p
	}
	if e.Next != nil {
		n := *e.Next
		e.Next = &n
	}
	e.TOC = append([]markdown.Heading(nil), e.TOC...)
	return e
}

func (e Entry) link() *Link {
	return &Link{ID: e.ID, Title: e.Title, Permalink: e.Permalink}
}

// Permalinker derives the public URLs of a document.
type Permalinker interface {
	Permalink(d docs.Descriptor) string
	EditURL(d docs.Descriptor) string
}

// Resolve flattens the tree depth-first in pre-order (categories are skipped,
// only documents become entries) and links every entry to its neighbours.
// The first entry has no Previous and the last no Next. A nil Permalinker
// uses SitePermalinker's defaults.
func Resolve(tree *Tree, links Permalinker) []Entry {
	if links == nil {
		links = SitePermalinker{}
	}

	entries := make([]Entry, 0)
	for d := range tree.Docs() {
		entries = append(entries, Entry{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Category:    d.Category,
			Permalink:   links.Permalink(d),
			EditURL:     links.EditURL(d),
			Source:      d.Source,
			Fingerprint: d.Fingerprint,
			TOC:         append([]markdown.Heading(nil), d.TOC...),
		})
	}

	for i := range entries {
		if i > 0 {
			entries[i].Previous = entries[i-1].link()
		}
		if i+1 < len(entries) {
			entries[i].Next = entries[i+1].link()
		}
	}
	return entries
}
