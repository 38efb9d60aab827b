package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// Category metadata files, checked in this order. JSON is read by the YAML
// decoder.
var categoryFiles = []string{"_category_.yml", "_category_.yaml", "_category_.json"}

type categoryFile struct {
	Label       string `yaml:"label"`
	Position    *int   `yaml:"position"`
	Collapsible *bool  `yaml:"collapsible"`
	Collapsed   *bool  `yaml:"collapsed"`
}

func readCategoryFile(dir string) (sidebar.CategoryMeta, error) {
	for _, name := range categoryFiles {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return sidebar.CategoryMeta{}, err
		}
		var f categoryFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return sidebar.CategoryMeta{}, fmt.Errorf("%s: %w", name, err)
		}
		return sidebar.CategoryMeta{
			Label:       f.Label,
			Position:    f.Position,
			Collapsible: f.Collapsible,
			Collapsed:   f.Collapsed,
		}, nil
	}
	return sidebar.CategoryMeta{}, nil
}

// categorySet tracks the directories of a docs tree. Each directory is a
// category named by its slash separated path; documents at the root go to
// the root category.
type categorySet struct {
	root     string
	rootUsed bool
	dirs     map[string]sidebar.CategoryMeta
	used     map[string]bool
}

func newCategorySet(root string) *categorySet {
	return &categorySet{
		root: root,
		dirs: make(map[string]sidebar.CategoryMeta),
		used: make(map[string]bool),
	}
}

func (c *categorySet) addDir(rel string, meta sidebar.CategoryMeta) {
	if parent := path.Dir(rel); parent != "." {
		meta.Parent = parent
	}
	if meta.Label == "" {
		meta.Label = path.Base(rel)
	}
	c.dirs[rel] = meta
}

// categoryFor returns the category of a document in dir and marks it and
// its ancestors as used.
func (c *categorySet) categoryFor(dir string) string {
	if dir == "." {
		c.rootUsed = true
		return c.root
	}
	for d := dir; d != "."; d = path.Dir(d) {
		c.used[d] = true
	}
	return dir
}

// conflict reports a directory named like the root category when both hold
// documents. The two would share one category name.
func (c *categorySet) conflict() error {
	if !c.rootUsed || !c.used[c.root] {
		return nil
	}
	return ferrors.ConfigError("a docs directory has the same name as the root category").
		WithContext("category", c.root).
		WithContext("setting", "content.root_category").
		Build()
}

// meta returns the metadata of every used category.
func (c *categorySet) meta() map[string]sidebar.CategoryMeta {
	out := make(map[string]sidebar.CategoryMeta, len(c.used)+1)
	for name, m := range c.dirs {
		if c.used[name] {
			out[name] = m
		}
	}
	if c.rootUsed || len(out) == 0 {
		out[c.root] = sidebar.CategoryMeta{Label: c.root}
	}
	return out
}

// order lists the used categories depth first. Siblings are sorted by
// _category_ position (unpositioned last), then by name.
func (c *categorySet) order() []string {
	children := make(map[string][]string)
	for name := range c.dirs {
		if !c.used[name] {
			continue
		}
		parent := c.dirs[name].Parent
		children[parent] = append(children[parent], name)
	}
	for _, names := range children {
		sort.Slice(names, func(i, j int) bool {
			pi, pj := c.dirs[names[i]].Position, c.dirs[names[j]].Position
			switch {
			case pi != nil && pj != nil && *pi != *pj:
				return *pi < *pj
			case pi != nil && pj == nil:
				return true
			case pi == nil && pj != nil:
				return false
			}
			return names[i] < names[j]
		})
	}

	out := make([]string, 0, len(c.used)+1)
	if c.rootUsed || len(children[""]) == 0 {
		out = append(out, c.root)
	}
	var walk func(parent string)
	walk = func(parent string) {
		for _, name := range children[parent] {
			out = append(out, name)
			walk(name)
		}
	}
	walk("")
	return out
}
