package content

import (
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"git.home.luguber.info/inful/navindex/internal/logfields"
)

// BrokenLinkMode selects how CheckLinks reacts to links whose target is not a
// loaded document.
type BrokenLinkMode string

const (
	BrokenLinksThrow  BrokenLinkMode = "throw"
	BrokenLinksWarn   BrokenLinkMode = "warn"
	BrokenLinksIgnore BrokenLinkMode = "ignore"
)

// Valid reports whether m is a known mode.
func (m BrokenLinkMode) Valid() bool {
	switch m {
	case BrokenLinksThrow, BrokenLinksWarn, BrokenLinksIgnore:
		return true
	default:
		return false
	}
}

// BrokenLink is a relative document link that resolves to no loaded source.
type BrokenLink struct {
	Source string
	Target string
}

// BrokenLinksError lists every broken link found by CheckLinks.
type BrokenLinksError struct {
	Links []BrokenLink
}

func (e *BrokenLinksError) Error() string {
	parts := make([]string, 0, len(e.Links))
	for _, l := range e.Links {
		parts = append(parts, l.Source+" -> "+l.Target)
	}
	return fmt.Sprintf("%d broken document link(s): %s", len(e.Links), strings.Join(parts, ", "))
}

// FindBrokenLinks resolves every recorded link against its document's
// directory and returns those that do not name a loaded source, sorted by
// source then target.
func (r *Result) FindBrokenLinks() []BrokenLink {
	sources := make(map[string]bool, len(r.Descriptors))
	for _, d := range r.Descriptors {
		sources[d.Source] = true
	}

	var broken []BrokenLink
	for src, targets := range r.Links {
		for _, t := range targets {
			resolved := path.Join(path.Dir(src), t)
			if !sources[resolved] {
				broken = append(broken, BrokenLink{Source: src, Target: t})
			}
		}
	}
	sort.Slice(broken, func(i, j int) bool {
		if broken[i].Source != broken[j].Source {
			return broken[i].Source < broken[j].Source
		}
		return broken[i].Target < broken[j].Target
	})
	return broken
}

// CheckLinks applies mode to the broken links of r. Throw returns a
// *BrokenLinksError, warn logs each link, ignore does nothing.
func (r *Result) CheckLinks(mode BrokenLinkMode, logger *slog.Logger) error {
	if mode == BrokenLinksIgnore {
		return nil
	}
	broken := r.FindBrokenLinks()
	if len(broken) == 0 {
		return nil
	}
	if mode == BrokenLinksWarn {
		if logger == nil {
			logger = slog.Default()
		}
		for _, l := range broken {
			logger.Warn("Broken document link", logfields.Path(l.Source), slog.String("target", l.Target))
		}
		return nil
	}
	return &BrokenLinksError{Links: broken}
}
