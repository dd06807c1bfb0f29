package testsupport

import (
	"context"
	"testing"

	"eventarr/internal/blocklist"
	"eventarr/internal/config"
	"eventarr/internal/logging"
)

// MustOpenStore opens a blocklist.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *blocklist.Store {
	t.Helper()

	store, err := blocklist.Open(cfg)
	if err != nil {
		t.Fatalf("blocklist.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustNewManager opens a store and wraps it in a Manager.
func MustNewManager(t testing.TB, cfg *config.Config) *blocklist.Manager {
	t.Helper()

	store := MustOpenStore(t, cfg)
	manager, err := blocklist.NewManager(context.Background(), store, cfg.Retry.MaxImportAttempts, logging.NewNop())
	if err != nil {
		t.Fatalf("blocklist.NewManager: %v", err)
	}
	return manager
}
