// Package download hands selected releases to a download client.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"eventarr/internal/fileutil"
	"eventarr/internal/logging"
	"eventarr/internal/release"
	"eventarr/internal/services"
	"eventarr/internal/textutil"
)

const component = "download"

// maxPayloadBytes caps fetched .torrent and .nzb files.
const maxPayloadBytes = 32 << 20

// Client accepts a release and returns the id it is tracked under.
//
// Errors marked services.ErrSourceFailure mean the release source could not
// deliver the payload; anything else is a client-side failure.
type Client interface {
	Name() string
	Add(ctx context.Context, rel release.Release) (string, error)
}

// Blackhole drops each grab into a watch directory for an external client.
// Magnet links are written as .magnet files; other links are fetched and
// stored as .torrent or .nzb files.
type Blackhole struct {
	dir    string
	http   *http.Client
	logger *slog.Logger
}

// NewBlackhole returns a client writing into dir.
func NewBlackhole(dir string, client *http.Client, logger *slog.Logger) (*Blackhole, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, component, "init", "blackhole directory is not configured", nil)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Blackhole{dir: dir, http: client, logger: logging.NewComponentLogger(logger, component)}, nil
}

// Name identifies the client in logs.
func (b *Blackhole) Name() string { return "blackhole" }

// Add writes rel to the watch directory.
func (b *Blackhole) Add(ctx context.Context, rel release.Release) (string, error) {
	link := strings.TrimSpace(rel.DownloadURL)
	if link == "" {
		return "", services.Wrap(services.ErrValidation, component, "add", "release has no download link", nil)
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, component, "add", "create blackhole directory", err)
	}

	id := uuid.NewString()
	base := textutil.SanitizeFileName(rel.Title)
	if base == "" {
		base = id
	}

	var (
		payload []byte
		ext     string
	)
	if strings.HasPrefix(strings.ToLower(link), "magnet:") {
		payload = []byte(link + "\n")
		ext = ".magnet"
	} else {
		data, err := b.fetch(ctx, link)
		if err != nil {
			return "", err
		}
		payload = data
		ext = ".torrent"
		if rel.Protocol == release.ProtocolUsenet {
			ext = ".nzb"
		}
	}

	target := filepath.Join(b.dir, base+ext)
	digest, err := fileutil.WriteAtomicVerified(target, payload, 0o644)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, component, "add", "write payload", err)
	}
	b.logger.Info("release handed to blackhole",
		logging.String("download_id", id),
		logging.String("path", target),
		logging.String(logging.FieldSource, rel.SourceName),
		logging.Int64("size_bytes", rel.SizeBytes),
		logging.String("sha256", digest),
	)
	return id, nil
}

func (b *Blackhole) fetch(ctx context.Context, link string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, component, "fetch", "invalid download link", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, services.Wrap(services.ErrTimeout, component, "fetch", link, err)
		}
		return nil, services.Wrap(services.ErrSourceFailure, component, "fetch", link, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, services.Wrap(services.ErrSourceFailure, component, "fetch",
			fmt.Sprintf("%s returned %s", link, resp.Status), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrSourceFailure, component, "fetch", "read payload", err)
	}
	if len(data) == 0 {
		return nil, services.Wrap(services.ErrSourceFailure, component, "fetch", "empty payload", nil)
	}
	if len(data) > maxPayloadBytes {
		return nil, services.Wrap(services.ErrSourceFailure, component, "fetch", "payload too large", nil)
	}
	return data, nil
}
