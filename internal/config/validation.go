package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-co-op/gocron/v2"

	ferrors "git.home.luguber.info/inful/navindex/internal/foundation/errors"
)

// Validate checks the configuration after defaults are applied. Errors are
// classified as config errors naming the offending field.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateSite,
		c.validateContent,
		c.validateServer,
		c.validateStorage,
		c.validateEvents,
		c.validateDaemon,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field, format string, args ...any) error {
	return ferrors.ConfigError(fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...))).
		WithContext("field", field).
		Build()
}

func (c *Config) validateSite() error {
	if !strings.HasPrefix(c.Site.RouteBasePath, "/") {
		return invalid("site.route_base_path", "must start with /, got %q", c.Site.RouteBasePath)
	}
	for field, raw := range map[string]string{"site.url": c.Site.URL, "site.edit_url": c.Site.EditURL} {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid(field, "must be an absolute URL, got %q", raw)
		}
	}
	return nil
}

func (c *Config) validateContent() error {
	cc := c.Content
	if cc.MinHeadingLevel < 1 || cc.MaxHeadingLevel > 6 || cc.MinHeadingLevel > cc.MaxHeadingLevel {
		return invalid("content.min_heading_level", "heading levels must satisfy 1 <= min (%d) <= max (%d) <= 6",
			cc.MinHeadingLevel, cc.MaxHeadingLevel)
	}
	seen := make(map[string]bool, len(cc.CategoryOrder))
	for _, name := range cc.CategoryOrder {
		if strings.TrimSpace(name) == "" {
			return invalid("content.category_order", "empty category name")
		}
		if seen[name] {
			return invalid("content.category_order", "category %q listed twice", name)
		}
		seen[name] = true
	}
	if len(cc.CategoryOrder) > 0 {
		for name, meta := range cc.Categories {
			if !seen[name] {
				return invalid("content.categories", "category %q is not in category_order", name)
			}
			if meta.Parent != "" && !seen[meta.Parent] {
				return invalid("content.categories", "category %q has undeclared parent %q", name, meta.Parent)
			}
		}
	}
	if src := cc.Source; src != nil {
		if src.URL == "" {
			return invalid("content.source.url", "required when source is set")
		}
		for field, raw := range map[string]string{"content.source.retry.initial": src.Retry.Initial, "content.source.retry.max": src.Retry.Max} {
			if _, err := time.ParseDuration(raw); err != nil {
				return invalid(field, "invalid duration %q", raw)
			}
		}
		if src.Retry.MaxRetries < 0 {
			return invalid("content.source.retry.max_retries", "must not be negative")
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "required")
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") {
		return invalid("server.metrics_path", "must start with /, got %q", c.Server.MetricsPath)
	}
	if c.Server.CacheSize < 0 {
		return invalid("server.cache_size", "must not be negative")
	}
	if _, err := time.ParseDuration(c.Server.Timeout); err != nil {
		return invalid("server.timeout", "invalid duration %q", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.KeepBuilds < 0 {
		return invalid("storage.keep_builds", "must not be negative")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if c.Events.NATSURL == "" {
		return nil
	}
	if !strings.HasPrefix(c.Events.NATSURL, "nats://") && !strings.HasPrefix(c.Events.NATSURL, "tls://") {
		return invalid("events.nats_url", "must use nats:// or tls://, got %q", c.Events.NATSURL)
	}
	if strings.ContainsAny(c.Events.Subject, " \t*>") {
		return invalid("events.subject", "must be a literal subject, got %q", c.Events.Subject)
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if _, err := time.ParseDuration(c.Daemon.Debounce); err != nil {
		return invalid("daemon.debounce", "invalid duration %q", c.Daemon.Debounce)
	}
	if c.Daemon.Schedule == "" {
		return nil
	}
	if _, err := c.Daemon.JobDefinition(); err != nil {
		return invalid("daemon.schedule", "%v", err)
	}
	return nil
}

// DebounceDuration returns the parsed debounce delay.
func (d DaemonConfig) DebounceDuration() time.Duration {
	v, _ := time.ParseDuration(d.Debounce)
	return v
}

// JobDefinition turns Schedule into a gocron job definition: an interval
// when it parses as a duration, a cron expression otherwise.
func (d DaemonConfig) JobDefinition() (gocron.JobDefinition, error) {
	if iv, err := time.ParseDuration(d.Schedule); err == nil {
		if iv < time.Second {
			return nil, fmt.Errorf("interval %s is shorter than 1s", iv)
		}
		return gocron.DurationJob(iv), nil
	}
	fields := strings.Fields(d.Schedule)
	if len(fields) != 5 && len(fields) != 6 {
		return nil, fmt.Errorf("%q is neither a duration nor a cron expression", d.Schedule)
	}
	return gocron.CronJob(d.Schedule, len(fields) == 6), nil
}

// TimeoutDuration returns the parsed server timeout.
func (s ServerConfig) TimeoutDuration() time.Duration {
	v, _ := time.ParseDuration(s.Timeout)
	return v
}
