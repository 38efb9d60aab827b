package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/navindex/internal/config"
	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/frontmatter"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool `help:"Overwrite existing configuration file"`
	NoDocs bool `help:"Do not create sample documents"`
}

type sampleDoc struct {
	path   string
	fields map[string]any
	body   string
}

var sampleDocs = []sampleDoc{
	{
		path:   "intro.md",
		fields: map[string]any{"title": "Introduction", "sidebar_position": 1},
		body:   "# Introduction\n\nStart with the [setup guide](guide/setup.md).\n\n## What is inside\n\nEverything you need.\n",
	},
	{
		path:   "guide/_category_.yml",
		fields: map[string]any{"label": "Guide", "position": 2},
	},
	{
		path:   "guide/setup.md",
		fields: map[string]any{"title": "Setup", "description": "Install and configure.", "sidebar_position": 1},
		body:   "# Setup\n\n## Install\n\n## Configure\n",
	},
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	out := g.out()
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}
	if i.NoDocs {
		return nil
	}

	docsDir := filepath.Join(filepath.Dir(root.Config), config.DefaultDocsDir)
	if _, err := os.Stat(docsDir); err == nil {
		_, _ = fmt.Fprintf(out, "Keeping existing docs directory %s\n", docsDir)
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat docs directory").Build()
	}

	for _, d := range sampleDocs {
		if err := writeSample(docsDir, d); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintf(out, "Created sample documents in %s\n", docsDir)
	return nil
}

func writeSample(docsDir string, d sampleDoc) error {
	raw, err := frontmatter.SerializeYAML(d.fields, "\n")
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode sample front matter").Build()
	}
	data := raw
	if filepath.Ext(d.path) == ".md" {
		data = frontmatter.Join(raw, []byte(d.body), "\n")
	}
	target := filepath.Join(docsDir, filepath.FromSlash(d.path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create docs directory").Build()
	}
	if err := os.WriteFile(target, data, 0o644); err != nil { //nolint:gosec // documentation sources
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write sample document").
			WithContext("path", target).
			Build()
	}
	return nil
}
