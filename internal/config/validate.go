package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateBreaker(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if c.Scoring.QualityWeight < 1 {
		return errors.New("scoring.quality_weight must be at least 1")
	}
	if c.Retry.MaxImportAttempts < 1 {
		return errors.New("retry.max_import_attempts must be at least 1")
	}
	if c.Notifications.RequestTimeoutSeconds < 0 {
		return errors.New("notifications.request_timeout_seconds must be non-negative")
	}
	return c.validateSources()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.MaxConcurrent < 1 {
		return errors.New("search.max_concurrent must be at least 1")
	}
	if c.Search.SourceTimeoutSeconds < 1 {
		return errors.New("search.source_timeout_seconds must be positive")
	}
	if c.Search.CompletedRetentionSeconds < 0 {
		return errors.New("search.completed_retention_seconds must be non-negative")
	}
	if c.Search.RecentlyCompletedLimit < 1 {
		return errors.New("search.recently_completed_limit must be at least 1")
	}
	if c.Search.GrabAttempts < 1 {
		return errors.New("search.grab_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateBreaker() error {
	if c.Breaker.QueryFailureThreshold < 1 {
		return errors.New("breaker.query_failure_threshold must be at least 1")
	}
	if c.Breaker.GrabFailureThreshold < 1 {
		return errors.New("breaker.grab_failure_threshold must be at least 1")
	}
	if c.Breaker.QueryCooldownMinutes < 1 {
		return errors.New("breaker.query_cooldown_minutes must be at least 1")
	}
	if c.Breaker.GrabCooldownMinutes < 1 {
		return errors.New("breaker.grab_cooldown_minutes must be at least 1")
	}
	return nil
}

func (c *Config) validateMatching() error {
	m := c.Matching
	if m.Threshold < 1 || m.Threshold > 100 {
		return errors.New("matching.threshold must be between 1 and 100")
	}
	if m.DateWindowDays < 0 {
		return errors.New("matching.date_window_days must be non-negative")
	}
	if m.WeightDate < 0 || m.WeightTokens < 0 || m.WeightRound < 0 || m.WeightLeague < 0 {
		return errors.New("matching weights must be non-negative")
	}
	if m.WeightDate+m.WeightTokens+m.WeightRound+m.WeightLeague == 0 {
		return errors.New("matching weights must not all be zero")
	}
	return nil
}

func (c *Config) validateSources() error {
	seen := make(map[string]struct{}, len(c.Sources))
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("sources[%d].name must be set", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("sources[%d].name %q is duplicated", i, src.Name)
		}
		seen[src.Name] = struct{}{}
		switch src.Kind {
		case SourceKindTorznab, SourceKindNewznab:
		default:
			return fmt.Errorf("source %q: unsupported kind %q", src.Name, src.Kind)
		}
		switch src.Protocol {
		case ProtocolTorrent, ProtocolUsenet:
		default:
			return fmt.Errorf("source %q: unsupported protocol %q", src.Name, src.Protocol)
		}
		parsed, err := url.Parse(src.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("source %q: url must be absolute, got %q", src.Name, src.URL)
		}
		if src.RequestsPerMinute < 0 {
			return fmt.Errorf("source %q: requests_per_minute must be non-negative", src.Name)
		}
		if src.TimeoutSeconds < 0 {
			return fmt.Errorf("source %q: timeout_seconds must be non-negative", src.Name)
		}
	}
	return nil
}
