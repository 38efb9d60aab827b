package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/navindex/internal/store"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Build string `arg:"" optional:"" help:"Show a single build"`
	Limit int    `short:"n" default:"10" help:"Number of builds to list (0 lists all)"`
	Prune int    `help:"Keep only the newest N builds before listing"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	out := g.out()

	if h.Prune > 0 {
		n, err := st.Prune(ctx, h.Prune)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Pruned %d builds\n", n)
	}

	if h.Build != "" {
		b, err := st.GetBuild(ctx, h.Build)
		if err != nil {
			return err
		}
		entries, err := st.Entries(ctx, b.ID)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(tw, "id\t%s\n", b.ID)
		_, _ = fmt.Fprintf(tw, "status\t%s\n", b.Status)
		_, _ = fmt.Fprintf(tw, "trigger\t%s\n", b.Trigger)
		_, _ = fmt.Fprintf(tw, "started\t%s\n", b.StartedAt.Format(time.RFC3339))
		_, _ = fmt.Fprintf(tw, "duration\t%s\n", b.Duration.Round(time.Millisecond))
		_, _ = fmt.Fprintf(tw, "documents\t%d\n", b.Documents)
		if b.Commit != "" {
			_, _ = fmt.Fprintf(tw, "commit\t%s\n", b.Commit)
		}
		if b.Fingerprint != "" {
			_, _ = fmt.Fprintf(tw, "fingerprint\t%s\n", b.Fingerprint)
		}
		if b.FailedStage != "" {
			_, _ = fmt.Fprintf(tw, "failed stage\t%s\n", b.FailedStage)
			_, _ = fmt.Fprintf(tw, "error\t%s\n", b.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, e := range entries {
			_, _ = fmt.Fprintf(out, "  %s  %s\n", e.ID, e.Permalink)
		}
		return nil
	}

	builds, err := st.ListBuilds(ctx, h.Limit)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		_, _ = fmt.Fprintln(out, "No builds recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTATUS\tTRIGGER\tSTARTED\tDURATION\tDOCS\tDETAIL")
	for _, b := range builds {
		detail := b.Commit
		if b.FailedStage != "" {
			detail = b.FailedStage + ": " + b.Error
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			b.ID, b.Status, b.Trigger, b.StartedAt.Local().Format(time.DateTime),
			b.Duration.Round(time.Millisecond), b.Documents, detail)
	}
	return tw.Flush()
}
