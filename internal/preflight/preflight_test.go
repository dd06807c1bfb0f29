package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"eventarr/internal/catalog"
	"eventarr/internal/config"
	"eventarr/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCatalog(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "catalog.yaml")
	testsupport.WriteFile(t, good, catalog.SampleYAML())
	if result := CheckCatalog(good); !result.Passed || !strings.Contains(result.Detail, "events") {
		t.Fatalf("expected pass, got %+v", result)
	}

	bad := filepath.Join(dir, "bad.yaml")
	testsupport.WriteFile(t, bad, "profiles: [{id: 1, name: HD, allowed_quality_ids: [99]}]")
	if result := CheckCatalog(bad); result.Passed {
		t.Fatal("expected failure for invalid catalog")
	}
	if result := CheckCatalog(""); result.Passed {
		t.Fatal("expected failure for unset catalog")
	}
}

func TestCheckSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("t") != "caps" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.URL.Query().Get("apikey") != "good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tests := []struct {
		name   string
		src    config.Source
		passed bool
	}{
		{"reachable", config.Source{Name: "alpha", URL: srv.URL, APIKey: "good-key"}, true},
		{"bad key", config.Source{Name: "alpha", URL: srv.URL, APIKey: "nope"}, false},
		{"missing url", config.Source{Name: "alpha"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckSource(context.Background(), tt.src)
			if result.Passed != tt.passed {
				t.Fatalf("expected passed=%v, got %+v", tt.passed, result)
			}
		})
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, false); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSource("alpha", "http://127.0.0.1:1"))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	testsupport.WriteFile(t, cfg.Paths.CatalogFile, catalog.SampleYAML())

	results := RunAll(context.Background(), cfg, false)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsMissingPieces(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.BlackholeDir = ""
	cfg.Search.AutoGrab = true

	failed := Failed(RunAll(context.Background(), cfg, false))
	names := make(map[string]bool, len(failed))
	for _, r := range failed {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Log directory", "Blackhole directory", "Catalog", "Release sources"} {
		if !names[want] {
			t.Errorf("expected %q to fail, got %+v", want, failed)
		}
	}
}
