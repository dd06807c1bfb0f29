package download_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventarr/internal/download"
	"eventarr/internal/release"
	"eventarr/internal/services"
)

func TestBlackholeWritesMagnet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")
	client, err := download.NewBlackhole(dir, nil, nil)
	if err != nil {
		t.Fatalf("NewBlackhole: %v", err)
	}
	magnet := "magnet:?xt=urn:btih:0123456789abcdef0123456789abcdef01234567"
	id, err := client.Add(context.Background(), release.Release{Title: "UFC 300: Main Card", DownloadURL: magnet})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if id == "" {
		t.Fatal("expected download id")
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one file, got %v (%v)", entries, err)
	}
	name := entries[0].Name()
	if !strings.HasSuffix(name, ".magnet") || strings.Contains(name, ":") {
		t.Fatalf("unexpected file name %q", name)
	}
	data, _ := os.ReadFile(filepath.Join(dir, name))
	if strings.TrimSpace(string(data)) != magnet {
		t.Fatalf("unexpected payload %q", data)
	}
}

func TestBlackholeFetchesNZB(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<nzb/>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	client, _ := download.NewBlackhole(dir, srv.Client(), nil)
	_, err := client.Add(context.Background(), release.Release{
		Title: "Event.720p", DownloadURL: srv.URL + "/get/1", Protocol: release.ProtocolUsenet,
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Event.720p.nzb")); err != nil {
		t.Fatalf("expected nzb file: %v", err)
	}
}

func TestBlackholeSourceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := download.NewBlackhole(t.TempDir(), srv.Client(), nil)
	_, err := client.Add(context.Background(), release.Release{Title: "x", DownloadURL: srv.URL})
	if !errors.Is(err, services.ErrSourceFailure) {
		t.Fatalf("expected source failure, got %v", err)
	}
}

func TestBlackholeRequiresLinkAndDir(t *testing.T) {
	if _, err := download.NewBlackhole("", nil, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	client, _ := download.NewBlackhole(t.TempDir(), nil, nil)
	if _, err := client.Add(context.Background(), release.Release{Title: "x"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
