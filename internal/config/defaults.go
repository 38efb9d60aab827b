package config

import "path/filepath"

// Default values applied by Load.
const (
	DefaultDocsDir         = "docs"
	DefaultRootCategory    = "Docs"
	DefaultRouteBasePath   = "/"
	DefaultMinHeadingLevel = 2
	DefaultMaxHeadingLevel = 4
	DefaultOutputDir       = "build/navindex"
	DefaultServerAddr      = ":8080"
	DefaultMetricsPath     = "/metrics"
	DefaultCacheSize       = 1024
	DefaultServerTimeout   = "30s"
	DefaultStoragePath     = "navindex.db"
	DefaultEventsSubject   = "navindex.index.published"
	DefaultDebounce        = "500ms"
	DefaultWorkspace       = ".navindex/source"
	DefaultBranch          = "main"
)

func applyDefaults(cfg *Config) {
	s := &cfg.Site
	if s.RouteBasePath == "" {
		s.RouteBasePath = DefaultRouteBasePath
	}

	c := &cfg.Content
	if c.DocsDir == "" {
		c.DocsDir = DefaultDocsDir
	}
	if c.RootCategory == "" {
		c.RootCategory = DefaultRootCategory
	}
	if c.MinHeadingLevel == 0 {
		c.MinHeadingLevel = DefaultMinHeadingLevel
	}
	if c.MaxHeadingLevel == 0 {
		c.MaxHeadingLevel = DefaultMaxHeadingLevel
	}
	c.OnBrokenLinks = brokenLinksNormalizer.Normalize(string(c.OnBrokenLinks))
	if src := c.Source; src != nil {
		if src.Branch == "" {
			src.Branch = DefaultBranch
		}
		if src.Workspace == "" {
			src.Workspace = DefaultWorkspace
		}
		applyRetryDefaults(&src.Retry)
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = DefaultOutputDir
	}
	cfg.Output.Dir = filepath.Clean(cfg.Output.Dir)

	srv := &cfg.Server
	if srv.Addr == "" {
		srv.Addr = DefaultServerAddr
	}
	if srv.MetricsPath == "" {
		srv.MetricsPath = DefaultMetricsPath
	}
	if srv.CacheSize == 0 {
		srv.CacheSize = DefaultCacheSize
	}
	if srv.Timeout == "" {
		srv.Timeout = DefaultServerTimeout
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if cfg.Events.Subject == "" {
		cfg.Events.Subject = DefaultEventsSubject
	}
	if cfg.Daemon.Debounce == "" {
		cfg.Daemon.Debounce = DefaultDebounce
	}

	l := &cfg.Monitoring.Logging
	l.Level = NormalizeLogLevel(string(l.Level))
	l.Format = NormalizeLogFormat(string(l.Format))
}

func applyRetryDefaults(r *RetryConfig) {
	r.Mode = retryBackoffNormalizer.Normalize(string(r.Mode))
	if r.Initial == "" {
		r.Initial = "1s"
	}
	if r.Max == "" {
		r.Max = "30s"
	}
	if r.MaxRetries == 0 {
		r.MaxRetries = 2
	}
}
