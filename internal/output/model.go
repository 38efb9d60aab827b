// Package output renders a published index as the JSON files consumed by the
// documentation site and writes them atomically.
package output

import (
	"slices"
	"time"

	"git.home.luguber.info/inful/navindex/internal/index"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// SidebarName is the key the generated sidebar is published under.
const SidebarName = "docs"

// SidebarFile is the content of sidebar.json.
type SidebarFile struct {
	BuildID      string                         `json:"buildId"`
	DocsSidebars map[string][]index.SidebarItem `json:"docsSidebars"`
}

// IndexFile is the content of index.json.
type IndexFile struct {
	BuildID     string          `json:"buildId"`
	PublishedAt time.Time       `json:"publishedAt"`
	Fingerprint string          `json:"fingerprint"`
	Categories  []string        `json:"categories"`
	Entries     []sidebar.Entry `json:"entries"`
}

// DocFile is the content of docs/<id>.json.
type DocFile struct {
	BuildID string `json:"buildId"`
	sidebar.Entry
}

func NewSidebarFile(idx *index.Index) SidebarFile {
	return SidebarFile{
		BuildID:      idx.BuildID(),
		DocsSidebars: map[string][]index.SidebarItem{SidebarName: idx.Sidebar()},
	}
}

func NewIndexFile(idx *index.Index) IndexFile {
	return IndexFile{
		BuildID:     idx.BuildID(),
		PublishedAt: idx.PublishedAt(),
		Fingerprint: idx.Fingerprint(),
		Categories:  idx.CategoryNames(),
		Entries:     slices.Collect(idx.Entries()),
	}
}
