package ratelimit

import (
	"errors"
	"sync"

	"github.com/regwatch/telebrief/internal/logger"
)

// ErrBudgetExhausted is returned by Use once the per-run request cap is hit.
var ErrBudgetExhausted = errors.New("ratelimit: generation budget exhausted")

// Budget caps the number of generation requests a single run may issue and
// tracks how much work the summary cache avoided. A zero or negative max
// means unlimited.
type Budget struct {
	mu          sync.Mutex
	count       int
	max         int
	cacheHits   int
	cacheMisses int
	tokensSaved int
}

func NewBudget(maxRequests int) *Budget {
	return &Budget{max: maxRequests}
}

// Allow reports whether another request fits the budget without consuming it.
func (b *Budget) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.max <= 0 || b.count < b.max
}

// Use consumes one request from the budget.
func (b *Budget) Use() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.max > 0 && b.count >= b.max {
		return ErrBudgetExhausted
	}

	b.count++
	b.cacheMisses++

	if b.max > 0 && b.count == b.max {
		logger.Warn("generation budget exhausted", "used", b.count, "max", b.max)
	}
	return nil
}

// RecordCacheHit notes a generation request avoided by the cache.
func (b *Budget) RecordCacheHit(estimatedTokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cacheHits++
	b.tokensSaved += estimatedTokens
}

// Used returns the number of requests consumed so far.
func (b *Budget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Budget) hitRate() float64 {
	total := b.cacheHits + b.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(b.cacheHits) / float64(total) * 100
}

// Stats returns budget counters for the run report and monitoring endpoint.
func (b *Budget) Stats() map[string]interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return map[string]interface{}{
		"requests_used":  b.count,
		"requests_limit": b.max,
		"cache_hits":     b.cacheHits,
		"cache_misses":   b.cacheMisses,
		"cache_hit_rate": b.hitRate(),
		"tokens_saved":   b.tokensSaved,
	}
}
