package testsupport

import (
	"context"
	"testing"

	"quill/internal/config"
	"quill/internal/task"
	"quill/internal/taskstore"
)

// MustOpenStore opens a taskstore.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *taskstore.Store {
	t.Helper()

	store, err := taskstore.Open(cfg)
	if err != nil {
		t.Fatalf("taskstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewTask creates a pending article task for tests using the provided store.
func NewTask(t testing.TB, store *taskstore.Store, topic string) *task.Task {
	t.Helper()

	created, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:  task.TypeArticle,
		Topic: topic,
	})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return created
}
