package markdown

import (
	"net/url"
	"path"
	"strings"
)

type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
	LinkKindHTML                LinkKind = "html"
)

type Link struct {
	Kind        LinkKind
	Destination string
}

// DocumentTarget reports the Markdown file a link points at, relative to the
// linking document's directory, with any fragment or query removed.
//
// Only relative links to .md/.mdx files qualify; external URLs, absolute
// paths, images and pure fragments return ok=false.
func (l Link) DocumentTarget() (target string, ok bool) {
	if l.Kind == LinkKindImage || l.Kind == LinkKindAuto {
		return "", false
	}
	dest := strings.TrimSpace(l.Destination)
	if dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "/") {
		return "", false
	}
	u, err := url.Parse(dest)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	p, err := url.PathUnescape(u.Path)
	if err != nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx":
		return p, true
	default:
		return "", false
	}
}
