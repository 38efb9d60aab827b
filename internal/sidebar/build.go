package sidebar

import (
	"fmt"
	"iter"
	"math"
	"sort"

	"git.home.luguber.info/inful/navindex/internal/docs"
	derrors "git.home.luguber.info/inful/navindex/internal/docs/errors"
)

// CategoryMeta carries optional presentation and nesting data for a category.
// Zero values fall back to the category name, collapsible, collapsed, and a
// position after all documents of the parent.
type CategoryMeta struct {
	Label       string `yaml:"label,omitempty" json:"label,omitempty"`
	Parent      string `yaml:"parent,omitempty" json:"parent,omitempty"`
	Position    *int   `yaml:"position,omitempty" json:"position,omitempty"`
	Collapsible *bool  `yaml:"collapsible,omitempty" json:"collapsible,omitempty"`
	Collapsed   *bool  `yaml:"collapsed,omitempty" json:"collapsed,omitempty"`
}

type buildOptions struct {
	categories map[string]CategoryMeta
}

// Option customises Build.
type Option func(*buildOptions)

// WithCategories supplies per-category metadata keyed by category name.
func WithCategories(meta map[string]CategoryMeta) Option {
	return func(o *buildOptions) { o.categories = meta }
}

type positioned struct {
	position int
	item     Item
}

// Build groups descriptors by category, orders each category's children by
// ascending position (stable, so equal positions keep input order) and lays
// out top-level categories in the order given. Categories with a Parent in
// their metadata are nested under that parent instead.
//
// Build returns a fresh tree on every call and does not retain or modify its
// inputs. It fails with *UnknownCategoryError when a descriptor names a
// category missing from order, and with *docs.DuplicateIDError when two
// descriptors share an id.
func Build(descriptors iter.Seq[docs.Descriptor], order []string, opts ...Option) (*Tree, error) {
	o := buildOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	nodes, err := declareCategories(order, o.categories)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]positioned, len(order))
	seen := make(map[string]string)
	for d := range descriptors {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if first, dup := seen[d.ID]; dup {
			return nil, &docs.DuplicateIDError{ID: d.ID, First: first, Second: d.Source}
		}
		seen[d.ID] = d.Source
		if _, ok := nodes[d.Category]; !ok {
			return nil, &UnknownCategoryError{Category: d.Category, DocID: d.ID}
		}
		groups[d.Category] = append(groups[d.Category], positioned{position: d.Position, item: DocItem{Doc: d.Clone()}})
	}

	root := &CategoryNode{}
	for _, name := range order {
		meta := o.categories[name]
		node := nodes[name]
		if meta.Parent == "" {
			root.Children = append(root.Children, node)
			continue
		}
		pos := math.MaxInt
		if meta.Position != nil {
			pos = *meta.Position
		}
		groups[meta.Parent] = append(groups[meta.Parent], positioned{position: pos, item: node})
	}

	for name, node := range nodes {
		children := groups[name]
		sort.SliceStable(children, func(i, j int) bool {
			return children[i].position < children[j].position
		})
		node.Children = make([]Item, len(children))
		for i, c := range children {
			node.Children[i] = c.item
		}
	}

	return &Tree{Root: root}, nil
}

// declareCategories validates order and creates one node per category.
func declareCategories(order []string, meta map[string]CategoryMeta) (map[string]*CategoryNode, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: no categories declared", derrors.ErrInvalidCategoryOrder)
	}
	nodes := make(map[string]*CategoryNode, len(order))
	for _, name := range order {
		if name == "" {
			return nil, fmt.Errorf("%w: empty category name", derrors.ErrInvalidCategoryOrder)
		}
		if _, dup := nodes[name]; dup {
			return nil, fmt.Errorf("%w: %q declared twice", derrors.ErrInvalidCategoryOrder, name)
		}
		m := meta[name]
		node := &CategoryNode{Name: name, Label: name, Collapsible: true, Collapsed: true}
		if m.Label != "" {
			node.Label = m.Label
		}
		if m.Collapsible != nil {
			node.Collapsible = *m.Collapsible
		}
		if m.Collapsed != nil {
			node.Collapsed = *m.Collapsed
		}
		nodes[name] = node
	}

	for _, name := range order {
		parent := meta[name].Parent
		if parent == "" {
			continue
		}
		if _, ok := nodes[parent]; !ok {
			return nil, &UnknownCategoryError{Category: parent}
		}
		if err := checkNoCycle(name, meta); err != nil {
			return nil, err
		}
	}
	return nodes, nil
}

func checkNoCycle(name string, meta map[string]CategoryMeta) error {
	visited := map[string]bool{name: true}
	for cur := meta[name].Parent; cur != ""; cur = meta[cur].Parent {
		if visited[cur] {
			return fmt.Errorf("%w: category %q is nested inside itself", derrors.ErrInvalidCategoryOrder, name)
		}
		visited[cur] = true
	}
	return nil
}
