package daemonctl_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"eventarr/internal/api"
	"eventarr/internal/daemonctl"
	"eventarr/internal/testsupport"
)

func TestPIDFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eventarrd.pid")
	if pid, err := daemonctl.ReadPID(path); err != nil || pid != 0 {
		t.Fatalf("missing pid file: got %d, %v", pid, err)
	}
	if err := daemonctl.WritePID(path); err != nil {
		t.Fatalf("WritePID: %v", err)
	}
	pid, err := daemonctl.ReadPID(path)
	if err != nil || pid != os.Getpid() {
		t.Fatalf("ReadPID: got %d, %v", pid, err)
	}

	testsupport.WriteFile(t, path, "garbage")
	if _, err := daemonctl.ReadPID(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestProcessAlive(t *testing.T) {
	if !daemonctl.ProcessAlive(os.Getpid()) {
		t.Fatal("current process should be alive")
	}
	if daemonctl.ProcessAlive(0) || daemonctl.ProcessAlive(-1) {
		t.Fatal("non-positive pids are never alive")
	}
}

func TestStopWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	client, err := api.NewClient("127.0.0.1:1", "", nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := daemonctl.Stop(ctx, client, cfg, time.Second); !errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestLaunchRequiresExecutable(t *testing.T) {
	if err := daemonctl.Launch("  ", daemonctl.LaunchOptions{}); err == nil {
		t.Fatal("expected error for empty executable path")
	}
}
