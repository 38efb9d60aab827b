// Package config loads the navindex configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
	"git.home.luguber.info/inful/navindex/internal/sidebar"
)

// Version is the only configuration format version understood by Load.
const Version = "1"

// Config is the complete navindex configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Site       SiteConfig       `yaml:"site"`
	Content    ContentConfig    `yaml:"content"`
	Output     OutputConfig     `yaml:"output"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Events     EventsConfig     `yaml:"events"`
	Daemon     DaemonConfig     `yaml:"daemon"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// SiteConfig describes how documents are addressed on the published site.
type SiteConfig struct {
	Title         string `yaml:"title"`
	URL           string `yaml:"url"`
	RouteBasePath string `yaml:"route_base_path"`
	TrailingSlash bool   `yaml:"trailing_slash"`
	// EditURL is the repository browse URL edit links are built from,
	// e.g. https://github.com/org/repo/tree/main.
	EditURL string `yaml:"edit_url"`
}

// ContentConfig locates the documents and shapes the sidebar.
type ContentConfig struct {
	DocsDir      string `yaml:"docs_dir"`
	RootCategory string `yaml:"root_category"`
	// CategoryOrder overrides the order derived from the docs directory.
	CategoryOrder   []string                        `yaml:"category_order,omitempty"`
	Categories      map[string]sidebar.CategoryMeta `yaml:"categories,omitempty"`
	MinHeadingLevel int                             `yaml:"min_heading_level"`
	MaxHeadingLevel int                             `yaml:"max_heading_level"`
	IncludeDrafts   bool                            `yaml:"include_drafts"`
	OnBrokenLinks   BrokenLinksMode                 `yaml:"on_broken_links"`
	Source          *SourceConfig                   `yaml:"source,omitempty"`
}

// SourceConfig names a git repository the docs are fetched from before a build.
// When set, DocsDir is resolved inside the checkout.
type SourceConfig struct {
	URL       string      `yaml:"url"`
	Branch    string      `yaml:"branch"`
	Workspace string      `yaml:"workspace"`
	TokenEnv  string      `yaml:"token_env,omitempty"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig controls retries of source fetches.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    string           `yaml:"initial"`
	Max        string           `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// OutputConfig controls the JSON files written after a build.
type OutputConfig struct {
	Dir    string `yaml:"dir"`
	Pretty bool   `yaml:"pretty"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsPath string `yaml:"metrics_path"`
	CacheSize   int    `yaml:"cache_size"`
	Timeout     string `yaml:"timeout"`
}

// StorageConfig configures the build history database.
type StorageConfig struct {
	Path string `yaml:"path"`
	// KeepBuilds bounds the stored history; 0 keeps everything.
	KeepBuilds int `yaml:"keep_builds"`
}

// EventsConfig configures index published notifications. Empty NATSURL disables them.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// DaemonConfig configures rebuilds while serving.
type DaemonConfig struct {
	Watch bool `yaml:"watch"`
	// Debounce delays a rebuild after the last file change.
	Debounce string `yaml:"debounce"`
	// Schedule is an interval (e.g. "15m") or a cron expression; empty disables it.
	Schedule string `yaml:"schedule"`
}

// MonitoringConfig represents monitoring and observability configuration.
type MonitoringConfig struct {
	Logging MonitoringLogging `yaml:"logging"`
}

// MonitoringLogging represents logging configuration.
type MonitoringLogging struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration at path.
//
// .env and .env.local are loaded first without overriding the process
// environment, then ${VAR} references in the file are expanded.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", path).
			Build()
	}
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read configuration file").
			WithContext("path", path).
			Build()
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes, then applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration YAML").
			UserAction().
			Build()
	}
	if cfg.Version == "" {
		cfg.Version = Version
	}
	if cfg.Version != Version {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %q)", cfg.Version, Version)).Build()
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
