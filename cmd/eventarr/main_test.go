package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"eventarr/internal/catalog"
	"eventarr/internal/config"
	"eventarr/internal/daemon"
	"eventarr/internal/logging"
	"eventarr/internal/preflight"
	"eventarr/internal/searchqueue"
	"eventarr/internal/testsupport"
)

const testToken = "cli-secret"

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	feed := testsupport.TorznabFeed(
		testsupport.TorznabItem{
			Title:     "UFC.300.Pereira.vs.Hill.2024.04.13.1080p.WEB-DL.H264-GRP",
			Size:      6 << 30,
			Seeders:   120,
			Published: time.Date(2024, 4, 14, 6, 0, 0, 0, time.UTC),
		},
		testsupport.TorznabItem{
			Title:     "UFC.300.Pereira.vs.Hill.2024.04.13.720p.HDTV.x264-TV",
			Size:      3 << 30,
			Seeders:   40,
			Published: time.Date(2024, 4, 14, 7, 0, 0, 0, time.UTC),
		},
	)
	srv := testsupport.NewTorznabServer(t, func(url.Values) (int, string) { return 200, feed })
	cfg := testsupport.NewConfig(t, testsupport.WithSource("alpha", srv.URL))
	cfg.Paths.APIToken = testToken
	cfg.Search.CompletedRetentionSeconds = 60
	testsupport.WriteFile(t, cfg.Paths.CatalogFile, catalog.SampleYAML())

	d, err := daemon.New(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	cfg.Paths.APIBind = d.Addr().String()
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func (env *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", env.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("EVENTARR_API_TOKEN", "")
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSearchWaitPrintsSelection(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "search", "1", "--wait", "--timeout", "10s")
	if err != nil {
		t.Fatalf("search: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Status:   completed") || !strings.Contains(out, "1080p") {
		t.Fatalf("unexpected search output:\n%s", out)
	}

	out, err = env.run(t, "--json", "queue")
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	var snap searchqueue.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode queue json: %v\n%s", err, out)
	}
	if len(snap.RecentlyCompleted) != 1 {
		t.Fatalf("expected one completed item, got %+v", snap)
	}

	out, err = env.run(t, "show", snap.RecentlyCompleted[0].ID)
	if err != nil || !strings.Contains(out, "Selected:") {
		t.Fatalf("show: %v\n%s", err, out)
	}
}

func TestSearchRejectsBadEventID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "search", "abc"); err == nil {
		t.Fatal("expected error for non-numeric event id")
	}
	if _, err := env.run(t, "search", "404"); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestEvaluateCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "evaluate", "UFC.300.Pereira.vs.Hill.2024.04.13.1080p.WEB-DL.H264-GRP", "--size", "6GiB")
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Approved: yes") {
		t.Fatalf("expected approval:\n%s", out)
	}

	if _, err := env.run(t, "evaluate", "x", "--size", "lots"); err == nil {
		t.Fatal("expected error for unparsable size")
	}
}

func TestMatchCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "match", "UFC.300.Pereira.vs.Hill.2024.04.13.1080p.WEB-DL.H264-GRP", "--event", "1")
	if err != nil {
		t.Fatalf("match: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pack: no") {
		t.Fatalf("expected a single-event match:\n%s", out)
	}
}

func TestBlocklistCommands(t *testing.T) {
	env := setupCLITestEnv(t)
	title := "UFC.300.Pereira.vs.Hill.2024.04.13.720p.HDTV.x264-TV"

	out, err := env.run(t, "--json", "blocklist", "add", title, "--event", "1", "--message", "bad audio")
	if err != nil {
		t.Fatalf("blocklist add: %v\n%s", err, out)
	}
	var added struct {
		Entry struct {
			ContentHash string `json:"contentHash"`
		} `json:"entry"`
	}
	if err := json.Unmarshal([]byte(out), &added); err != nil || added.Entry.ContentHash == "" {
		t.Fatalf("decode add output %q: %v", out, err)
	}

	out, err = env.run(t, "blocklist", "list")
	if err != nil || !strings.Contains(out, added.Entry.ContentHash) {
		t.Fatalf("blocklist list: %v\n%s", err, out)
	}

	if _, err := env.run(t, "blocklist", "remove", added.Entry.ContentHash); err != nil {
		t.Fatalf("blocklist remove: %v", err)
	}
	if _, err := env.run(t, "blocklist", "remove", added.Entry.ContentHash); err == nil {
		t.Fatal("expected not-found error on second remove")
	}
	out, err = env.run(t, "blocklist", "list")
	if err != nil || !strings.Contains(out, "Blocklist is empty") {
		t.Fatalf("expected empty blocklist: %v\n%s", err, out)
	}
}

func TestDownloadFailedUnknownID(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "download", "failed", "missing"); err == nil {
		t.Fatal("expected error for unknown download id")
	}
}

func TestDaemonStatusAndSources(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "daemon", "status")
	if err != nil || !strings.Contains(out, "Running") {
		t.Fatalf("daemon status: %v\n%s", err, out)
	}
	out, err = env.run(t, "sources")
	if err != nil || !strings.Contains(out, "alpha") {
		t.Fatalf("sources: %v\n%s", err, out)
	}
}

func TestWrongTokenIsRejected(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "--token", "nope", "queue"); err == nil {
		t.Fatal("expected unauthorized error")
	}
}

func TestUnreachableDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "--api", "127.0.0.1:1", "queue")
	if err == nil || !strings.Contains(err.Error(), "connect to daemon") {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "--json", "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	var results []preflight.Result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode check output: %v", err)
	}
	if len(preflight.Failed(results)) != 0 {
		t.Fatalf("unexpected failures: %+v", results)
	}

	testsupport.WriteFile(t, env.cfg.Paths.CatalogFile, "events: [")
	if _, err := env.run(t, "check"); err == nil {
		t.Fatal("expected failure with a broken catalog")
	}
}

func TestCatalogCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "catalog", "show")
	if err != nil || !strings.Contains(out, "Profile") {
		t.Fatalf("catalog show: %v\n%s", err, out)
	}

	if _, err := env.run(t, "catalog", "init"); err == nil {
		t.Fatal("expected refusal to overwrite an existing catalog")
	}
	target := filepath.Join(t.TempDir(), "nested", "catalog.yaml")
	if _, err := env.run(t, "catalog", "init", "--path", target); err != nil {
		t.Fatalf("catalog init: %v", err)
	}
	if _, err := catalog.LoadStatic(target); err != nil {
		t.Fatalf("written catalog does not load: %v", err)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventarr.toml")

	if _, err := runCLI(t, "--config", path, "config", "init"); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := runCLI(t, "--config", path, "config", "init"); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	env := setupCLITestEnv(t)
	out, err := env.run(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, testToken) || !strings.Contains(out, "********") {
		t.Fatalf("expected the api token to be masked:\n%s", out)
	}
	out, err = env.run(t, "config", "validate")
	if err != nil || !strings.Contains(out, "Sources enabled: 1 of 1") {
		t.Fatalf("config validate: %v\n%s", err, out)
	}
}

func TestTestNotifyCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "test-notify"); err == nil {
		t.Fatal("expected error without a topic")
	}

	received := make(chan string, 1)
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- r.Header.Get("Title")
	}))
	defer ntfy.Close()
	env.cfg.Notifications.NtfyTopic = ntfy.URL
	writeTestConfig(t, env.configPath, env.cfg)

	if out, err := env.run(t, "test-notify"); err != nil {
		t.Fatalf("test-notify: %v\n%s", err, out)
	}
	if title := <-received; title != "eventarr - Test" {
		t.Fatalf("unexpected notification title %q", title)
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, filepath.Join(env.cfg.Paths.LogDir, "eventarr.log"), "one\ntwo\nthree\n")

	out, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}
