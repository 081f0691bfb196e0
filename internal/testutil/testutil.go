// Package testutil provides shared test helpers for stores and services.
package testutil

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/starford/kalendar/internal/eventservice"
	"github.com/starford/kalendar/internal/storage"
)

// Now is the fixed clock used by TestService: Saturday 2026-10-17 12:00 UTC.
var Now = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

// TestStore creates a temporary file-backed store.
func TestStore(t *testing.T) *storage.FS {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return store
}

// TestService creates a service over store with UTC, Sunday weeks and the
// fixed clock.
func TestService(t *testing.T, store storage.Provider) *eventservice.Service {
	t.Helper()
	svc, err := eventservice.New(store, eventservice.Options{
		Location: time.UTC,
		Now:      func() time.Time { return Now },
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}
