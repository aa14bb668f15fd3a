package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "seen.txt"))

	set, version, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("Len = %d, want 0", set.Len())
	}
	if version != "" {
		t.Errorf("version = %q, want empty", version)
	}
}

func TestFileStore_CreateThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	set := NewSeenSet()
	set.AddAll([]string{"https://x.example/1", "https://x.example/2"})
	if err := store.Save(ctx, set, ""); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if version == "" {
		t.Error("version empty after load of existing file")
	}
	got := loaded.Links()
	if len(got) != 2 || got[0] != "https://x.example/1" || got[1] != "https://x.example/2" {
		t.Errorf("Links = %v, want both in insertion order", got)
	}
}

func TestFileStore_ConflictOnExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("https://x.example/1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	set, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// Another writer appends before we save.
	if err := os.WriteFile(path, []byte("https://x.example/1\nhttps://y.example/2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	set.Add("https://x.example/3")
	if err := store.Save(ctx, set, version); !errors.Is(err, ErrConflict) {
		t.Fatalf("Save = %v, want ErrConflict", err)
	}

	// Reload picks up the other writer's state and the save goes through.
	set, version, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	set.Add("https://x.example/3")
	if err := store.Save(ctx, set, version); err != nil {
		t.Fatalf("Save after reload: %v", err)
	}

	final, _, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("final Load: %v", err)
	}
	for _, link := range []string{"https://x.example/1", "https://y.example/2", "https://x.example/3"} {
		if !final.Contains(link) {
			t.Errorf("final set missing %q", link)
		}
	}
}

func TestFileStore_ConflictOnConcurrentCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	// Loaded while missing, but another writer creates the file first.
	if err := os.WriteFile(path, []byte("https://y.example/1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	set := NewSeenSet()
	set.Add("https://x.example/1")
	if err := store.Save(ctx, set, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("Save = %v, want ErrConflict", err)
	}
}

func TestFileStore_ConflictOnDeletedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := os.WriteFile(path, []byte("https://x.example/1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	set, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, set, version); !errors.Is(err, ErrConflict) {
		t.Fatalf("Save = %v, want ErrConflict", err)
	}
}

func TestFileStore_SaveMergedEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.txt")
	store := NewFileStore(path)
	ctx := context.Background()

	set, version, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = SaveMerged(ctx, store, set, version, []string{"https://x.example/1", "https://x.example/2"}, 3)
	if err != nil {
		t.Fatalf("SaveMerged: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "https://x.example/1\nhttps://x.example/2\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}
