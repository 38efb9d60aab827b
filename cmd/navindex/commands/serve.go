package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/navindex/internal/api"
	"git.home.luguber.info/inful/navindex/internal/daemon"
	"git.home.luguber.info/inful/navindex/internal/logfields"
	"git.home.luguber.info/inful/navindex/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr     string `help:"Listen address (overrides server.addr)"`
	Output   string `short:"o" help:"Output directory (overrides output.dir)" type:"path"`
	NoWatch  bool   `help:"Do not rebuild on changes below the docs directory"`
	NoEvents bool   `help:"Do not publish index published events"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig(g)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Server.Addr = s.Addr
	}
	if s.NoWatch {
		cfg.Daemon.Watch = false
	}
	logger := g.Logger

	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewPrometheusRecorder(reg)

	rt, err := newRuntime(cfg, logger, runtimeOptions{
		outputDir: s.Output,
		noEvents:  s.NoEvents,
		recorder:  recorder,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	server, err := api.NewServer(cfg.Server, logger)
	if err != nil {
		return err
	}
	server.WithStore(rt.store).
		WithRebuilder(rt.service).
		WithRecorder(recorder).
		WithMetricsHandler(metrics.HTTPHandler(reg))
	rt.service.Subscribe(server.SetIndex)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d := daemon.New(cfg.Daemon, rt.service, rt.service.DocsDir()).WithLogger(logger)
	daemonDone := make(chan error, 1)
	go func() { daemonDone <- d.Run(ctx) }()

	serverDone := make(chan error, 1)
	go func() { serverDone <- server.Start() }()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case runErr = <-serverDone:
		serverDone = nil
	case runErr = <-daemonDone:
		daemonDone = nil
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown failed", logfields.Error(err))
	}
	for _, ch := range []chan error{serverDone, daemonDone} {
		if ch == nil {
			continue
		}
		if err := <-ch; err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
