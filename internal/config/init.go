package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
)

// Example returns the configuration written by Init.
func Example() *Config {
	cfg := &Config{
		Version: Version,
		Site: SiteConfig{
			Title:   "My Docs",
			URL:     "https://docs.example.com",
			EditURL: "https://github.com/example/docs/tree/main",
		},
		Content: ContentConfig{
			OnBrokenLinks: BrokenLinksThrow,
		},
		Monitoring: MonitoringConfig{Logging: MonitoringLogging{Level: LogLevelInfo, Format: LogFormatText}},
	}
	applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration to path. An existing file is kept
// unless force is set.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.AlreadyExistsError("configuration file already exists (use --force to overwrite)").
			WithContext("path", path).
			Build()
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "stat configuration file").Build()
	}

	data, err := yaml.Marshal(Example())
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "encode example configuration").Build()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create configuration directory").Build()
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "write configuration file").
			WithContext("path", path).
			Build()
	}
	return nil
}
