package testsupport

import (
	"path/filepath"
	"testing"

	"eventarr/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.CatalogFile = filepath.Join(base, "catalog.yaml")
	cfgVal.Paths.BlackholeDir = filepath.Join(base, "blackhole")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSource appends a torznab source pointing at url.
func WithSource(name, url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Sources = append(b.cfg.Sources, config.Source{
			Name:     name,
			Kind:     config.SourceKindTorznab,
			Protocol: config.ProtocolTorrent,
			URL:      url,
			APIKey:   "test",
		})
	}
}

// WithAutoGrab enables automatic grabbing of the selected release.
func WithAutoGrab(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search.AutoGrab = true
		if attempts > 0 {
			b.cfg.Search.GrabAttempts = attempts
		}
	}
}

// WithMaxConcurrent sets the worker pool size.
func WithMaxConcurrent(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search.MaxConcurrent = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
