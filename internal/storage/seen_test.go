package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSeenSet_AddAndContains(t *testing.T) {
	set := NewSeenSet()

	if !set.Add("https://a.example/1") {
		t.Error("first Add returned false")
	}
	if set.Add("https://a.example/1") {
		t.Error("duplicate Add returned true")
	}
	if !set.Contains("https://a.example/1") {
		t.Error("Contains false for added link")
	}
	if set.Contains("https://a.example/2") {
		t.Error("Contains true for unknown link")
	}
	if set.Len() != 1 {
		t.Errorf("Len = %d, want 1", set.Len())
	}
}

func TestSeenSet_OrderPreserved(t *testing.T) {
	set := NewSeenSet()
	set.AddAll([]string{"c", "a", "b", "a"})

	got := set.Links()
	want := []string{"c", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("Links = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Links[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSeenSet_TruncateEvictsOldest(t *testing.T) {
	set := NewSeenSet()
	set.AddAll([]string{"one", "two", "three", "four"})

	set.Truncate(2)

	if set.Len() != 2 {
		t.Fatalf("Len = %d, want 2", set.Len())
	}
	got := set.Links()
	if got[0] != "three" || got[1] != "four" {
		t.Errorf("Links = %v, want newest two in order", got)
	}
	if set.Contains("one") || set.Contains("two") {
		t.Error("evicted links still reported by Contains")
	}
	if !set.Add("one") {
		t.Error("evicted link could not be re-added")
	}
}

func TestSeenSet_TruncateNoop(t *testing.T) {
	set := NewSeenSet()
	set.AddAll([]string{"a", "b"})

	set.Truncate(5)
	if set.Len() != 2 {
		t.Errorf("Len = %d after oversized Truncate, want 2", set.Len())
	}
}

func TestParseSeenSet_Roundtrip(t *testing.T) {
	blob := []byte("https://x.example/p1\nhttps://x.example/p2\n\n  \nhttps://x.example/p3\n")

	set := ParseSeenSet(blob)
	if set.Len() != 3 {
		t.Fatalf("Len = %d, want 3", set.Len())
	}

	out := string(set.Encode())
	want := "https://x.example/p1\nhttps://x.example/p2\nhttps://x.example/p3\n"
	if out != want {
		t.Errorf("Encode = %q, want %q", out, want)
	}
}

func TestSeenSet_EncodeEmpty(t *testing.T) {
	if got := NewSeenSet().Encode(); len(got) != 0 {
		t.Errorf("Encode of empty set = %q, want empty", got)
	}
}

// fakeStore scripts Save outcomes and serves a fixed reload state.
type fakeStore struct {
	saveErrs  []error
	saveCalls int
	saved     *SeenSet

	reload        *SeenSet
	reloadVersion string
	reloadErr     error
	loadCalls     int
}

func (f *fakeStore) Load(ctx context.Context) (*SeenSet, string, error) {
	f.loadCalls++
	if f.reloadErr != nil {
		return nil, "", f.reloadErr
	}
	return f.reload, f.reloadVersion, nil
}

func (f *fakeStore) Save(ctx context.Context, set *SeenSet, version string) error {
	f.saveCalls++
	if f.saveCalls <= len(f.saveErrs) && f.saveErrs[f.saveCalls-1] != nil {
		return f.saveErrs[f.saveCalls-1]
	}
	f.saved = set
	return nil
}

func TestSaveMerged_ConflictRetriesWithReload(t *testing.T) {
	other := NewSeenSet()
	other.AddAll([]string{"theirs/1", "theirs/2"})

	store := &fakeStore{
		saveErrs:      []error{ErrConflict},
		reload:        other,
		reloadVersion: "v2",
	}

	mine := NewSeenSet()
	mine.Add("mine/old")

	err := SaveMerged(context.Background(), store, mine, "v1", []string{"mine/new"}, 3)
	if err != nil {
		t.Fatalf("SaveMerged: %v", err)
	}
	if store.saveCalls != 2 {
		t.Errorf("saveCalls = %d, want 2", store.saveCalls)
	}
	if store.loadCalls != 1 {
		t.Errorf("loadCalls = %d, want 1", store.loadCalls)
	}

	// The retried save must carry the other writer's links plus ours.
	for _, link := range []string{"theirs/1", "theirs/2", "mine/new"} {
		if !store.saved.Contains(link) {
			t.Errorf("saved set missing %q", link)
		}
	}
}

func TestSaveMerged_AttemptsExhausted(t *testing.T) {
	store := &fakeStore{
		saveErrs:      []error{ErrConflict, ErrConflict, ErrConflict},
		reload:        NewSeenSet(),
		reloadVersion: "v",
	}

	err := SaveMerged(context.Background(), store, NewSeenSet(), "", []string{"x"}, 3)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if store.saveCalls != 3 {
		t.Errorf("saveCalls = %d, want 3", store.saveCalls)
	}
}

func TestSaveMerged_NonConflictErrorStops(t *testing.T) {
	boom := fmt.Errorf("storage: put: connection refused")
	store := &fakeStore{saveErrs: []error{boom}}

	err := SaveMerged(context.Background(), store, NewSeenSet(), "v", nil, 3)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped save error", err)
	}
	if store.loadCalls != 0 {
		t.Error("non-conflict error triggered a reload")
	}
}

func TestSaveMerged_AppliesBound(t *testing.T) {
	store := &fakeStore{}

	set := NewSeenSet()
	for i := 0; i < MaxSeenLinks; i++ {
		set.Add(fmt.Sprintf("https://old.example/%d", i))
	}

	err := SaveMerged(context.Background(), store, set, "v", []string{"https://new.example/a", "https://new.example/b"}, 1)
	if err != nil {
		t.Fatalf("SaveMerged: %v", err)
	}

	if store.saved.Len() != MaxSeenLinks {
		t.Fatalf("saved Len = %d, want %d", store.saved.Len(), MaxSeenLinks)
	}
	links := store.saved.Links()
	if !strings.HasSuffix(links[len(links)-1], "/b") {
		t.Errorf("newest link = %q, want the last delivered", links[len(links)-1])
	}
	if store.saved.Contains("https://old.example/0") || store.saved.Contains("https://old.example/1") {
		t.Error("oldest links survived eviction")
	}
}
