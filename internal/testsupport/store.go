package testsupport

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"resyncd/internal/config"
	"resyncd/internal/jobstore"
)

// MustOpenStore opens a jobstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *jobstore.Store {
	t.Helper()

	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("jobstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job record for tests using the provided store.
func NewJob(t testing.TB, store *jobstore.Store, kind string, priority bool) *jobstore.Record {
	t.Helper()

	record := &jobstore.Record{
		ID:       uuid.NewString(),
		Kind:     kind,
		UserID:   "tester",
		Priority: priority,
	}
	if err := store.Create(context.Background(), record); err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return record
}
