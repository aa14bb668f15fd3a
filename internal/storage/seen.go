// Package storage persists the set of already-delivered article links
// between runs. The set lives as a flat line-delimited blob at a stable
// address, read and written as a whole and versioned by an opaque change
// token so concurrent writers never silently overwrite each other.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/regwatch/telebrief/internal/logger"
)

// MaxSeenLinks bounds the persisted set. Once exceeded, the oldest entries
// are evicted first.
const MaxSeenLinks = 5000

// ErrConflict is returned by Save when the blob changed since Load. The
// caller must reload, re-merge and retry rather than overwrite.
var ErrConflict = errors.New("storage: seen set changed since load")

// Store reads and writes the seen set. Version tokens are opaque; an empty
// version passed to Save means the blob is being created.
type Store interface {
	Load(ctx context.Context) (*SeenSet, string, error)
	Save(ctx context.Context, set *SeenSet, version string) error
}

// SeenSet is an ordered set of delivered links. Blob line order is
// insertion order, oldest first.
type SeenSet struct {
	links []string
	index map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{index: make(map[string]struct{})}
}

// ParseSeenSet reads the line-delimited blob format, skipping blank lines.
func ParseSeenSet(data []byte) *SeenSet {
	set := NewSeenSet()
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set.Add(line)
		}
	}
	return set
}

// Add appends a link unless it is already present.
func (s *SeenSet) Add(link string) bool {
	if _, ok := s.index[link]; ok {
		return false
	}
	s.index[link] = struct{}{}
	s.links = append(s.links, link)
	return true
}

func (s *SeenSet) AddAll(links []string) {
	for _, link := range links {
		s.Add(link)
	}
}

func (s *SeenSet) Contains(link string) bool {
	_, ok := s.index[link]
	return ok
}

func (s *SeenSet) Len() int {
	return len(s.links)
}

// Links returns the links in insertion order.
func (s *SeenSet) Links() []string {
	out := make([]string, len(s.links))
	copy(out, s.links)
	return out
}

// Truncate evicts the oldest entries until at most n remain.
func (s *SeenSet) Truncate(n int) {
	if n < 0 || len(s.links) <= n {
		return
	}
	evicted := s.links[:len(s.links)-n]
	for _, link := range evicted {
		delete(s.index, link)
	}
	s.links = append([]string(nil), s.links[len(s.links)-n:]...)
}

// Encode renders the blob: one link per line, oldest first.
func (s *SeenSet) Encode() []byte {
	if len(s.links) == 0 {
		return []byte{}
	}
	return []byte(strings.Join(s.links, "\n") + "\n")
}

// SaveMerged merges delivered links into the loaded set, applies the size
// bound and saves. On a version conflict it reloads, re-merges and retries
// up to attempts times; it never overwrites a blob it hasn't seen.
func SaveMerged(ctx context.Context, store Store, set *SeenSet, version string, delivered []string, attempts int) error {
	for attempt := 1; ; attempt++ {
		set.AddAll(delivered)
		set.Truncate(MaxSeenLinks)

		err := store.Save(ctx, set, version)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConflict) || attempt >= attempts {
			return err
		}

		logger.Warn("seen set conflict, reloading", "attempt", attempt)
		set, version, err = store.Load(ctx)
		if err != nil {
			return fmt.Errorf("storage: reload after conflict: %w", err)
		}
	}
}
