package indexer

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"eventarr/internal/config"
	"eventarr/internal/release"
)

// Query is one search request sent to every eligible source.
type Query struct {
	EventID    int64
	Term       string
	Part       string
	Categories []int
	Limit      int
}

// Text returns the search string, including the requested part when set.
func (q Query) Text() string {
	term := strings.TrimSpace(q.Term)
	if part := strings.TrimSpace(q.Part); part != "" && !strings.Contains(strings.ToLower(term), strings.ToLower(part)) {
		term += " " + part
	}
	return term
}

// Source answers release searches.
type Source interface {
	Name() string
	Protocol() release.Protocol
	Search(ctx context.Context, q Query) ([]release.Release, error)
}

// FromConfig builds a source for every enabled configured source.
func FromConfig(cfg *config.Config, client *http.Client) ([]Source, error) {
	if cfg == nil {
		return nil, nil
	}
	sources := make([]Source, 0, len(cfg.Sources))
	for _, src := range cfg.EnabledSources() {
		switch src.Kind {
		case config.SourceKindTorznab, config.SourceKindNewznab:
			sources = append(sources, NewTorznab(src, cfg.SourceTimeout(), client))
		default:
			return nil, fmt.Errorf("source %q: unsupported kind %q", src.Name, src.Kind)
		}
	}
	return sources, nil
}
