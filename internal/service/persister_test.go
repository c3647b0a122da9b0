package service

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"todo-app/internal/repository"
	"todo-app/internal/state"
)

func TestSnapshotPersisterRoundTrip(t *testing.T) {
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "todo.db"))
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	persister := NewSnapshotPersister(repository.NewUserRepository(db), log.New(io.Discard, "", 0))

	if _, ok := persister.Load(context.Background()); ok {
		t.Fatal("empty database should report no user")
	}

	opts := state.Options{Persister: persister, Logger: log.New(io.Discard, "", 0)}
	store := state.New(context.Background(), opts)
	tasks := NewTaskService(store, NewCategoryService(store))
	if _, err := tasks.CreateTask(TaskInput{Name: "Persist me", Category: "Work"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	want := store.Current()
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := state.New(context.Background(), opts)
	defer reopened.Close()
	got := reopened.Current()
	if got.ID != want.ID || len(got.Tasks) != 1 || got.Tasks[0].Name != "Persist me" {
		t.Fatalf("reloaded user = %+v", got)
	}
	if len(got.Categories) != 1 || got.Tasks[0].CategoryID != got.Categories[0].ID {
		t.Errorf("category link lost: %+v / %+v", got.Tasks[0], got.Categories)
	}
}
