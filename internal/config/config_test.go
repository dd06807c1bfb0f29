package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"eventarr/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("EVENTARR_API_TOKEN", "env-token")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	wantData := filepath.Join(tempHome, ".local", "share", "eventarr")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "eventarr.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Fatalf("expected api token from env, got %q", cfg.Paths.APIToken)
	}
	if cfg.Search.MaxConcurrent != 3 {
		t.Fatalf("unexpected max concurrent: %d", cfg.Search.MaxConcurrent)
	}
	if cfg.CompletedRetention() != 5*time.Second {
		t.Fatalf("unexpected completed retention: %s", cfg.CompletedRetention())
	}
	if cfg.Breaker.QueryFailureThreshold != 3 {
		t.Fatalf("unexpected breaker threshold: %d", cfg.Breaker.QueryFailureThreshold)
	}
	if cfg.Matching.Threshold != 50 {
		t.Fatalf("unexpected match threshold: %d", cfg.Matching.Threshold)
	}
}

func TestLoadParsesSources(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EVENTARR_BETA_NET_API_KEY", "from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[search]
max_concurrent = 2

[[sources]]
name = "alpha"
url = "http://alpha.local/api/"
api_key = "abc"
requests_per_minute = 10

[[sources]]
name = "beta-net"
kind = "newznab"
url = "https://beta.local/api"

[[sources]]
name = "gamma"
url = "http://gamma.local"
disabled = true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if len(cfg.Sources) != 3 {
		t.Fatalf("expected 3 sources, got %d", len(cfg.Sources))
	}
	alpha := cfg.Sources[0]
	if alpha.Kind != config.SourceKindTorznab || alpha.Protocol != config.ProtocolTorrent {
		t.Fatalf("unexpected alpha defaults: %+v", alpha)
	}
	if alpha.URL != "http://alpha.local/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", alpha.URL)
	}
	beta := cfg.Sources[1]
	if beta.Protocol != config.ProtocolUsenet {
		t.Fatalf("expected newznab to default to usenet, got %q", beta.Protocol)
	}
	if beta.APIKey != "from-env" {
		t.Fatalf("expected env api key, got %q", beta.APIKey)
	}
	enabled := cfg.EnabledSources()
	if len(enabled) != 2 {
		t.Fatalf("expected 2 enabled sources, got %d", len(enabled))
	}
	if got := alpha.Timeout(cfg.SourceTimeout()); got != 30*time.Second {
		t.Fatalf("unexpected source timeout: %s", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"pool size", func(c *config.Config) { c.Search.MaxConcurrent = 0 }, "search.max_concurrent"},
		{"threshold", func(c *config.Config) { c.Matching.Threshold = 101 }, "matching.threshold"},
		{"zero threshold", func(c *config.Config) { c.Matching.Threshold = 0 }, "matching.threshold"},
		{"weights", func(c *config.Config) {
			c.Matching.WeightDate, c.Matching.WeightTokens, c.Matching.WeightRound, c.Matching.WeightLeague = 0, 0, 0, 0
		}, "must not all be zero"},
		{"breaker", func(c *config.Config) { c.Breaker.QueryFailureThreshold = 0 }, "breaker.query_failure_threshold"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"notify timeout", func(c *config.Config) { c.Notifications.RequestTimeoutSeconds = -1 }, "notifications.request_timeout_seconds"},
		{"source url", func(c *config.Config) {
			c.Sources = []config.Source{{Name: "x", Kind: "torznab", Protocol: "torrent", URL: "not a url"}}
		}, "url must be absolute"},
		{"duplicate source", func(c *config.Config) {
			src := config.Source{Name: "x", Kind: "torznab", Protocol: "torrent", URL: "http://x.local"}
			c.Sources = []config.Source{src, src}
		}, "duplicated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %q", tt.want, err.Error())
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Search.MaxConcurrent != config.Default().Search.MaxConcurrent {
		t.Fatalf("sample max_concurrent drifted from defaults: %d", cfg.Search.MaxConcurrent)
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[search]") {
		t.Fatalf("sample missing search section")
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.BlackholeDir = filepath.Join(base, "drop")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir, cfg.Paths.BlackholeDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q", dir)
		}
	}
}
