// Package cache holds generated titles and summaries in memory so that a
// long-running process does not re-summarize articles that linger in feeds
// across consecutive runs.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry is a cached generation result.
type Entry struct {
	Title   string
	Summary string
}

type item struct {
	entry     Entry
	expiresAt time.Time
}

type Cache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]item
	done  chan struct{}
}

func New(ttl time.Duration) *Cache {
	c := &Cache{
		ttl:   ttl,
		items: make(map[string]item),
		done:  make(chan struct{}),
	}

	go c.cleanupLoop()

	return c
}

func (c *Cache) Set(key string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = item{
		entry:     entry,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	it, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		return Entry{}, false
	}
	if time.Now().After(it.expiresAt) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return Entry{}, false
	}

	return it.entry, true
}

// Key derives a stable cache key from an article's source, title and content.
func Key(source, title, content string) string {
	h := sha256.New()
	h.Write([]byte(source + "|" + title + "|" + content))
	return hex.EncodeToString(h.Sum(nil))
}

// Stop halts the background cleanup goroutine.
func (c *Cache) Stop() {
	close(c.done)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, it := range c.items {
		if now.After(it.expiresAt) {
			delete(c.items, key)
		}
	}
}
