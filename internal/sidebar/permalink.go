package sidebar

import (
	"path"
	"strings"

	"git.home.luguber.info/inful/navindex/internal/docs"
)

// SitePermalinker builds permalinks the way the documentation site routes
// documents:
//
//   - no slug: /<id>
//   - absolute slug (/x): /x
//   - relative slug: /<directory of id>/<slug>
//
// The result is prefixed with RouteBasePath. TrailingSlash appends "/" to
// every permalink except the root.
type SitePermalinker struct {
	RouteBasePath string
	TrailingSlash bool
	// EditURLBase and DocsDir form edit links: <EditURLBase>/<DocsDir>/<Source>.
	EditURLBase string
	DocsDir     string
}

func (p SitePermalinker) Permalink(d docs.Descriptor) string {
	var rel string
	switch {
	case d.Slug == "":
		rel = d.ID
	case strings.HasPrefix(d.Slug, "/"):
		rel = d.Slug
	default:
		rel = path.Join(path.Dir(d.ID), d.Slug)
	}

	link := path.Join("/", p.RouteBasePath, rel)
	if p.TrailingSlash && link != "/" {
		link += "/"
	}
	return link
}

func (p SitePermalinker) EditURL(d docs.Descriptor) string {
	if p.EditURLBase == "" || d.Source == "" {
		return ""
	}
	return strings.TrimRight(p.EditURLBase, "/") + "/" + strings.TrimPrefix(path.Join(p.DocsDir, d.Source), "/")
}
