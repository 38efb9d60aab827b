// Package docs holds the document descriptors that feed the navigation index
// and the registry that collects them.
package docs

import (
	"fmt"
	"slices"
	"strings"

	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
	"git.home.luguber.info/inful/navindex/internal/markdown"
)

// Descriptor is the metadata of one content document.
//
// ID, Title, Description, Category and Position drive the navigation tree.
// Slug and Source feed permalinks and edit links; Fingerprint and TOC are
// carried through to the published index unchanged.
type Descriptor struct {
	ID          string             `json:"id" yaml:"id"`
	Title       string             `json:"title" yaml:"title"`
	Description string             `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string             `json:"category" yaml:"category"`
	Position    int                `json:"position" yaml:"position"`
	Slug        string             `json:"slug,omitempty" yaml:"slug,omitempty"`
	Source      string             `json:"source,omitempty" yaml:"source,omitempty"`
	Fingerprint string             `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	TOC         []markdown.Heading `json:"toc,omitempty" yaml:"toc,omitempty"`
}

// Clone returns a copy that shares no mutable state with d.
func (d Descriptor) Clone() Descriptor {
	d.TOC = slices.Clone(d.TOC)
	return d
}

// Validate checks the fields every descriptor must carry.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("%w: empty id (title %q)", derrors.ErrInvalidDescriptor, d.Title)
	}
	if strings.TrimSpace(d.Title) == "" {
		return fmt.Errorf("%w: %s has no title", derrors.ErrInvalidDescriptor, d.ID)
	}
	return nil
}

// DuplicateIDError reports a second descriptor using an already registered id.
type DuplicateIDError struct {
	ID string
	// Sources of the first and second descriptor, when known.
	First, Second string
}

func (e *DuplicateIDError) Error() string {
	if e.First != "" || e.Second != "" {
		return fmt.Sprintf("%v: %q (%s and %s)", derrors.ErrDuplicateID, e.ID, e.First, e.Second)
	}
	return fmt.Sprintf("%v: %q", derrors.ErrDuplicateID, e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return derrors.ErrDuplicateID }
