package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/navindex/internal/output"
)

// LookupCmd implements the 'lookup' command.
type LookupCmd struct {
	ID     string `arg:"" help:"Document id, e.g. guide/setup"`
	Output string `short:"o" help:"Output directory to read (overrides output.dir)" type:"path"`
	JSON   bool   `help:"Print the raw entry as JSON"`
}

func (l *LookupCmd) Run(g *Global, root *CLI) error {
	dir := l.Output
	if dir == "" {
		cfg, err := root.loadConfig(g)
		if err != nil {
			return err
		}
		dir = cfg.Output.Dir
	}

	doc, err := output.ReadDoc(dir, strings.Trim(l.ID, "/"))
	if err != nil {
		return err
	}

	out := g.out()
	if l.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	_, _ = fmt.Fprintf(out, "%s\n", doc.Title)
	_, _ = fmt.Fprintf(out, "  id:        %s\n", doc.ID)
	_, _ = fmt.Fprintf(out, "  category:  %s\n", doc.Category)
	_, _ = fmt.Fprintf(out, "  permalink: %s\n", doc.Permalink)
	if doc.EditURL != "" {
		_, _ = fmt.Fprintf(out, "  edit:      %s\n", doc.EditURL)
	}
	if doc.Previous != nil {
		_, _ = fmt.Fprintf(out, "  previous:  %s (%s)\n", doc.Previous.Title, doc.Previous.ID)
	}
	if doc.Next != nil {
		_, _ = fmt.Fprintf(out, "  next:      %s (%s)\n", doc.Next.Title, doc.Next.ID)
	}
	if len(doc.TOC) > 0 {
		_, _ = fmt.Fprintln(out, "  toc:")
		for _, h := range doc.TOC {
			_, _ = fmt.Fprintf(out, "  %s- %s (#%s)\n", strings.Repeat("  ", max(h.Level-2, 0)), h.Value, h.ID)
		}
	}
	return nil
}
