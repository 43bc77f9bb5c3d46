package testsupport

import (
	"context"
	"testing"

	"ludex/internal/config"
	"ludex/internal/library"
)

// MustOpenStore opens a library.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *library.Store {
	t.Helper()

	store, err := library.Open(cfg)
	if err != nil {
		t.Fatalf("library.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewInstance records a scanned folder for tests using the provided store.
func NewInstance(t testing.TB, store *library.Store, folderPath, title string) *library.Instance {
	t.Helper()

	instance, err := store.UpsertInstance(context.Background(), library.ScannedInstance{
		FolderPath: folderPath,
		Title:      title,
	})
	if err != nil {
		t.Fatalf("store.UpsertInstance: %v", err)
	}
	return instance
}

// NewCanonical creates a canonical game for tests.
func NewCanonical(t testing.TB, store *library.Store, id, title string) *library.CanonicalGame {
	t.Helper()

	ctx := context.Background()
	err := store.WithTx(ctx, func(tx *library.Tx) error {
		return tx.CreateCanonical(&library.CanonicalGame{ID: id, DisplayTitle: title})
	})
	if err != nil {
		t.Fatalf("create canonical: %v", err)
	}
	game, err := store.Canonical(ctx, id)
	if err != nil {
		t.Fatalf("store.Canonical: %v", err)
	}
	return game
}
