// Package content discovers the Markdown documents of a docs directory and
// turns them into descriptors, category metadata and a derived category order.
package content

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/navindex/internal/docs"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	"git.home.luguber.info/inful/navindex/internal/frontmatter"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/markdown"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// Defaults applied to zero Options fields.
const (
	DefaultRootCategory    = "Docs"
	DefaultMinHeadingLevel = 2
	DefaultMaxHeadingLevel = 4
)

// Options control how a docs directory is read.
type Options struct {
	DocsDir string
	// RootCategory receives documents that sit directly in DocsDir.
	RootCategory    string
	MinHeadingLevel int
	MaxHeadingLevel int
	IncludeDrafts   bool
	Logger          *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.RootCategory == "" {
		o.RootCategory = DefaultRootCategory
	}
	if o.MinHeadingLevel == 0 {
		o.MinHeadingLevel = DefaultMinHeadingLevel
	}
	if o.MaxHeadingLevel == 0 {
		o.MaxHeadingLevel = DefaultMaxHeadingLevel
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Result is everything read from a docs directory.
type Result struct {
	// Descriptors in walk order (lexical by path).
	Descriptors []docs.Descriptor
	// Categories holds metadata for every discovered category, keyed by name.
	Categories map[string]sidebar.CategoryMeta
	// Order is the derived category order: the root category first, then the
	// directories sorted by their _category_ position and name, depth first.
	Order []string
	// Links maps each document source to the relative .md/.mdx links it contains.
	Links map[string][]string
	// Drafts counts documents skipped because they are drafts.
	Drafts int
}

// Load walks opts.DocsDir and reads every Markdown document.
//
// Files and directories starting with "." or "_" are skipped (partials and
// hidden files); "_category_" files are read as category metadata. A missing
// DocsDir fails with ErrDocsDirNotFound, unreadable front matter with
// ErrFrontMatter.
func Load(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	info, err := os.Stat(opts.DocsDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", derrors.ErrDocsDirNotFound, opts.DocsDir)
	}

	cats := newCategorySet(opts.RootCategory)
	res := &Result{Links: make(map[string][]string)}

	err = filepath.WalkDir(opts.DocsDir, func(p string, d fs.DirEntry, werr error) error {
		if werr != nil {
			return werr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(opts.DocsDir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if isSkipped(name) {
				return filepath.SkipDir
			}
			meta, err := readCategoryFile(p)
			if err != nil {
				return fmt.Errorf("%s: %w", rel, err)
			}
			cats.addDir(rel, meta)
			return nil
		}
		if isSkipped(name) || !isMarkdown(name) {
			return nil
		}

		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		desc, links, draft, err := parseDocument(rel, raw, opts)
		if err != nil {
			return err
		}
		if draft && !opts.IncludeDrafts {
			res.Drafts++
			opts.Logger.Debug("Skipping draft", logfields.Path(rel))
			return nil
		}
		desc.Category = cats.categoryFor(path.Dir(rel))
		res.Descriptors = append(res.Descriptors, desc)
		if len(links) > 0 {
			res.Links[rel] = links
		}
		opts.Logger.Debug("Discovered document",
			logfields.DocID(desc.ID),
			logfields.Path(rel),
			logfields.Category(desc.Category))
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := cats.conflict(); err != nil {
		return nil, err
	}
	res.Categories = cats.meta()
	res.Order = cats.order()
	opts.Logger.Info("Loaded documents",
		logfields.Path(opts.DocsDir),
		logfields.Count(len(res.Descriptors)),
		slog.Int("categories", len(res.Order)),
		slog.Int("drafts", res.Drafts))
	return res, nil
}

func isSkipped(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_")
}

func isMarkdown(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".mdx":
		return true
	default:
		return false
	}
}

// parseDocument builds the descriptor for the document at rel (slash
// separated, relative to the docs root). Category is left for the caller.
func parseDocument(rel string, raw []byte, opts Options) (docs.Descriptor, []string, bool, error) {
	parts, err := frontmatter.Split(raw)
	if err != nil {
		return docs.Descriptor{}, nil, false, fmt.Errorf("%w: %s: %w", derrors.ErrFrontMatter, rel, err)
	}
	fields, err := frontmatter.Decode(parts.Raw)
	if err != nil {
		return docs.Descriptor{}, nil, false, fmt.Errorf("%w: %s: %w", derrors.ErrFrontMatter, rel, err)
	}
	generic, err := frontmatter.ParseYAML(parts.Raw)
	if err != nil {
		return docs.Descriptor{}, nil, false, fmt.Errorf("%w: %s: %w", derrors.ErrFrontMatter, rel, err)
	}
	fingerprint, err := Fingerprint(generic, parts.Body)
	if err != nil {
		return docs.Descriptor{}, nil, false, fmt.Errorf("fingerprint %s: %w", rel, err)
	}

	doc := markdown.Parse(parts.Body)
	base := strings.TrimSuffix(path.Base(rel), path.Ext(rel))

	d := docs.Descriptor{
		ID:          documentID(rel, fields.ID),
		Title:       firstNonEmpty(fields.Title, doc.Title(), base),
		Description: firstNonEmpty(fields.Description, doc.Summary()),
		Slug:        fields.Slug,
		Source:      rel,
		Fingerprint: fingerprint,
	}
	if fields.SidebarPosition != nil {
		d.Position = *fields.SidebarPosition
	}
	if !fields.HideTableOfContents {
		minLevel, maxLevel := opts.MinHeadingLevel, opts.MaxHeadingLevel
		if fields.TOCMinHeadingLevel > 0 {
			minLevel = fields.TOCMinHeadingLevel
		}
		if fields.TOCMaxHeadingLevel > 0 {
			maxLevel = fields.TOCMaxHeadingLevel
		}
		d.TOC = doc.TOC(minLevel, maxLevel)
	}

	var links []string
	for _, l := range doc.Links {
		if target, ok := l.DocumentTarget(); ok {
			links = append(links, target)
		}
	}
	return d, links, fields.Draft, nil
}

// documentID derives the id from the source path. A front matter id replaces
// only the file name; the directory part is kept.
func documentID(rel, override string) string {
	dir := path.Dir(rel)
	name := strings.TrimSuffix(path.Base(rel), path.Ext(rel))
	if override = strings.TrimSpace(override); override != "" {
		name = override
	}
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
