package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/navindex/internal/build"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output    string `short:"o" help:"Output directory (overrides output.dir)" type:"path"`
	NoHistory bool   `help:"Do not record the build in the history database"`
	NoEvents  bool   `help:"Do not publish an index published event"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg, g.Logger, runtimeOptions{
		outputDir: b.Output,
		noHistory: b.NoHistory,
		noEvents:  b.NoEvents,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := rt.service.Run(ctx, build.TriggerManual)
	if err != nil {
		return err
	}

	out := g.out()
	switch result.Status {
	case build.StatusUnchanged:
		_, _ = fmt.Fprintf(out, "Index unchanged: %d documents (build %s)\n", result.Documents, result.BuildID)
	default:
		_, _ = fmt.Fprintf(out, "Published %d documents (build %s, fingerprint %.12s)\n",
			result.Documents, result.BuildID, result.Index.Fingerprint())
	}
	if result.Drafts > 0 {
		_, _ = fmt.Fprintf(out, "Skipped %d drafts\n", result.Drafts)
	}
	return nil
}
