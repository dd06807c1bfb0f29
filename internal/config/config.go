package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	LogDir       string `toml:"log_dir"`
	CatalogFile  string `toml:"catalog_file"`
	BlackholeDir string `toml:"blackhole_dir"`
	APIBind      string `toml:"api_bind"`
	APIToken     string `toml:"api_token"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Search controls the worker pool and the acquisition behaviour of each item.
type Search struct {
	MaxConcurrent             int  `toml:"max_concurrent"`
	SourceTimeoutSeconds      int  `toml:"source_timeout_seconds"`
	CompletedRetentionSeconds int  `toml:"completed_retention_seconds"`
	RecentlyCompletedLimit    int  `toml:"recently_completed_limit"`
	AutoGrab                  bool `toml:"auto_grab"`
	GrabAttempts              int  `toml:"grab_attempts"`
}

// Breaker configures per-source circuit breaking.
type Breaker struct {
	QueryFailureThreshold int `toml:"query_failure_threshold"`
	GrabFailureThreshold  int `toml:"grab_failure_threshold"`
	QueryCooldownMinutes  int `toml:"query_cooldown_minutes"`
	GrabCooldownMinutes   int `toml:"grab_cooldown_minutes"`
}

// Scoring tunes how quality rank and format score combine.
type Scoring struct {
	// QualityWeight is a floor; the scorer raises it to ten times the largest
	// format score magnitude in the active profile.
	QualityWeight int `toml:"quality_weight"`
}

// Matching tunes pack matching confidence.
type Matching struct {
	Threshold      int `toml:"threshold"`
	DateWindowDays int `toml:"date_window_days"`
	WeightDate     int `toml:"weight_date"`
	WeightTokens   int `toml:"weight_tokens"`
	WeightRound    int `toml:"weight_round"`
	WeightLeague   int `toml:"weight_league"`
}

// Retry bounds import retries per download.
type Retry struct {
	MaxImportAttempts int `toml:"max_import_attempts"`
}

// Notifications configures ntfy push notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Source describes one configured release source.
type Source struct {
	Name              string `toml:"name"`
	Kind              string `toml:"kind"`
	URL               string `toml:"url"`
	APIKey            string `toml:"api_key"`
	Protocol          string `toml:"protocol"`
	Disabled          bool   `toml:"disabled"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Categories        []int  `toml:"categories"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

// Config encapsulates all configuration values for eventarr.
//
// Configuration sections by subsystem:
//   - Paths: data, logs, catalog file, blackhole drop folder and API bind
//   - Logging: log format and level
//   - Search: worker pool size, per-source timeouts, auto-grab
//   - Breaker: per-source failure thresholds and cool-downs
//   - Scoring: quality weight floor
//   - Matching: pack matching threshold, date window and weights
//   - Retry: import retry cap
//   - Notifications: ntfy topic for grab and failure alerts
//   - Sources: configured release sources
type Config struct {
	Paths         Paths         `toml:"paths"`
	Logging       Logging       `toml:"logging"`
	Search        Search        `toml:"search"`
	Breaker       Breaker       `toml:"breaker"`
	Scoring       Scoring       `toml:"scoring"`
	Matching      Matching      `toml:"matching"`
	Retry         Retry         `toml:"retry"`
	Notifications Notifications `toml:"notifications"`
	Sources       []Source      `toml:"sources"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("eventarr.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.BlackholeDir) != "" {
		if err := os.MkdirAll(c.Paths.BlackholeDir, 0o755); err != nil {
			return fmt.Errorf("create blackhole directory %q: %w", c.Paths.BlackholeDir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite file holding the blocklist and grab history.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "eventarr.db")
}

// LockPath returns the single-instance daemon lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "eventarrd.lock")
}

// PIDPath returns the file the running daemon records its process id in.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "eventarrd.pid")
}

// SourceTimeout returns the default per-call timeout for source queries.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Search.SourceTimeoutSeconds) * time.Second
}

// CompletedRetention returns how long terminal items stay visible to pollers.
func (c *Config) CompletedRetention() time.Duration {
	return time.Duration(c.Search.CompletedRetentionSeconds) * time.Second
}

// QueryCooldown returns how long a source stays disabled for queries once tripped.
func (c *Config) QueryCooldown() time.Duration {
	return time.Duration(c.Breaker.QueryCooldownMinutes) * time.Minute
}

// GrabCooldown returns how long a source stays disabled for grabs once tripped.
func (c *Config) GrabCooldown() time.Duration {
	return time.Duration(c.Breaker.GrabCooldownMinutes) * time.Minute
}

// NotificationTimeout returns the ntfy request timeout.
func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// EnabledSources returns the configured sources that are not disabled.
func (c *Config) EnabledSources() []Source {
	out := make([]Source, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.Disabled {
			continue
		}
		out = append(out, src)
	}
	return out
}

// Timeout returns the source-specific timeout, falling back to the provided default.
func (s Source) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return fallback
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}
