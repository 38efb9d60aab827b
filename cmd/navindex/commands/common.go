package commands

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/navindex/internal/build"
	"git.home.luguber.info/inful/navindex/internal/config"
	"git.home.luguber.info/inful/navindex/internal/events"
	"git.home.luguber.info/inful/navindex/internal/git"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
	"git.home.luguber.info/inful/navindex/internal/output"
	"git.home.luguber.info/inful/navindex/internal/store"
)

// Global is shared state handed to every command.
type Global struct {
	Logger *slog.Logger
	// Out receives command output; nil means stdout.
	Out io.Writer
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"navindex.yaml" env:"NAVINDEX_CONFIG" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Build the navigation index once and write it to the output directory"`
	Lookup  LookupCmd  `cmd:"" help:"Show the published navigation entry of a document"`
	Serve   ServeCmd   `cmd:"" help:"Serve the index over HTTP and rebuild on changes"`
	History HistoryCmd `cmd:"" help:"List recorded builds"`
	Init    InitCmd    `cmd:"" help:"Initialize a configuration file and sample docs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(newLogger(os.Stderr, level, config.LogFormatText))
	return nil
}

// loadConfig reads the configuration and applies its logging settings
// unless -v already forced debug output.
func (c *CLI) loadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, err
	}
	level := cfg.Monitoring.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(os.Stderr, level, cfg.Monitoring.Logging.Format)
	slog.SetDefault(logger)
	if g != nil {
		g.Logger = logger
	}
	return cfg, nil
}

func newLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// runtime bundles a build service with the resources it owns.
type runtime struct {
	service *build.Service
	store   store.Store
	closers []io.Closer
}

type runtimeOptions struct {
	outputDir string
	noHistory bool
	noEvents  bool
	recorder  metrics.Recorder
}

// newRuntime wires the build service from configuration: the optional git
// source, the output writer, the history store and the event publisher.
func newRuntime(cfg *config.Config, logger *slog.Logger, opts runtimeOptions) (*runtime, error) {
	rt := &runtime{}
	svc := build.NewService(cfg).WithLogger(logger).WithRecorder(opts.recorder)

	if cfg.Content.Source != nil {
		svc.WithFetcher(git.NewFetcher(*cfg.Content.Source).WithLogger(logger).WithRecorder(opts.recorder))
	}

	dir := cfg.Output.Dir
	if opts.outputDir != "" {
		dir = opts.outputDir
	}
	svc.WithWriter(&output.Writer{Dir: dir, Pretty: cfg.Output.Pretty, Logger: logger})

	if !opts.noHistory {
		st, err := store.NewSQLiteStore(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		rt.store = st
		rt.closers = append(rt.closers, st)
		svc.WithStore(st)
	}

	if !opts.noEvents && cfg.Events.NATSURL != "" {
		pub, err := events.Connect(cfg.Events, logger)
		if err != nil {
			// Notifications are best-effort; builds go on without them.
			logger.Warn("Event publishing disabled", logfields.URL(cfg.Events.NATSURL), logfields.Error(err))
		} else {
			pub.WithRecorder(opts.recorder)
			rt.closers = append(rt.closers, pub)
			svc.WithPublisher(pub)
		}
	}

	rt.service = svc
	return rt, nil
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}
