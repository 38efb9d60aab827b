// Package sidebar builds the navigation tree from document descriptors and
// flattens it into the ordered entry list that carries previous/next links.
package sidebar

import (
	"iter"

	"git.home.luguber.info/inful/navindex/internal/docs"
)

// ItemKind tags the closed set of sidebar item variants.
type ItemKind int

const (
	ItemDoc ItemKind = iota
	ItemCategory
)

func (k ItemKind) String() string {
	switch k {
	case ItemDoc:
		return "doc"
	case ItemCategory:
		return "category"
	default:
		return "unknown"
	}
}

// Item is either a DocItem or a *CategoryNode. The unexported method keeps
// the set closed; callers switch on Kind or on the concrete type.
type Item interface {
	Kind() ItemKind
	sidebarItem()
}

// DocItem is a navigable document in the tree.
type DocItem struct {
	Doc docs.Descriptor
}

func (DocItem) Kind() ItemKind { return ItemDoc }
func (DocItem) sidebarItem()   {}

// CategoryNode groups documents and nested categories. Name is the key used
// by descriptors and the category order; Label is what readers see.
type CategoryNode struct {
	Name        string
	Label       string
	Collapsible bool
	Collapsed   bool
	Children    []Item
}

func (*CategoryNode) Kind() ItemKind { return ItemCategory }
func (*CategoryNode) sidebarItem()   {}

// Clone returns a deep copy of the category and its subtree.
func (c *CategoryNode) Clone() *CategoryNode {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Children = make([]Item, len(c.Children))
	for i, child := range c.Children {
		switch it := child.(type) {
		case DocItem:
			cp.Children[i] = DocItem{Doc: it.Doc.Clone()}
		case *CategoryNode:
			cp.Children[i] = it.Clone()
		}
	}
	return &cp
}

// Docs yields the documents below c in depth-first pre-order.
func (c *CategoryNode) Docs() iter.Seq[docs.Descriptor] {
	return func(yield func(docs.Descriptor) bool) {
		c.walkDocs(yield)
	}
}

func (c *CategoryNode) walkDocs(yield func(docs.Descriptor) bool) bool {
	for _, child := range c.Children {
		switch it := child.(type) {
		case DocItem:
			if !yield(it.Doc) {
				return false
			}
		case *CategoryNode:
			if !it.walkDocs(yield) {
				return false
			}
		}
	}
	return true
}

// Tree is the navigation tree. Root is an unlabeled category whose children
// are the top-level categories in declaration order.
type Tree struct {
	Root *CategoryNode
}

// Categories yields the top-level categories.
func (t *Tree) Categories() iter.Seq[*CategoryNode] {
	return func(yield func(*CategoryNode) bool) {
		for _, child := range t.Root.Children {
			if c, ok := child.(*CategoryNode); ok {
				if !yield(c) {
					return
				}
			}
		}
	}
}

// Docs yields every document of the tree in depth-first pre-order.
func (t *Tree) Docs() iter.Seq[docs.Descriptor] {
	return t.Root.Docs()
}

// Clone returns a deep copy of the tree.
func (t *Tree) Clone() *Tree {
	return &Tree{Root: t.Root.Clone()}
}
