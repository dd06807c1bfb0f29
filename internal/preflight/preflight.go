package preflight

import (
	"context"
	"strings"

	"eventarr/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check that applies to cfg. Source reachability is
// only probed when probeSources is set, since it costs a request per source.
func RunAll(ctx context.Context, cfg *config.Config, probeSources bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if strings.TrimSpace(cfg.Paths.BlackholeDir) != "" {
		results = append(results, CheckDirectoryAccess("Blackhole directory", cfg.Paths.BlackholeDir))
	} else if cfg.Search.AutoGrab {
		results = append(results, Result{Name: "Blackhole directory", Detail: "auto-grab is enabled but no blackhole directory is configured"})
	}
	results = append(results, CheckCatalog(cfg.Paths.CatalogFile))
	results = append(results, CheckSourcesConfigured(cfg))

	if probeSources {
		for _, src := range cfg.EnabledSources() {
			results = append(results, CheckSource(ctx, src))
		}
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
