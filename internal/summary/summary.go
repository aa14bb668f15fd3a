// Package summary turns matched articles into digest-ready titles and
// summaries via a structured-generation model. Requests are batched, every
// degenerate response is repaired, and no article is ever dropped because
// generation failed.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/regwatch/telebrief/internal/cache"
	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/metrics"
	"github.com/regwatch/telebrief/internal/news"
	"github.com/regwatch/telebrief/internal/ratelimit"
)

const (
	// DefaultBatchSize is how many articles share one generation request.
	DefaultBatchSize = 10

	// Summaries shorter than this are regenerated once per article.
	minSummaryRunes = 20

	sentinelSummary = "summary unavailable"
)

// ErrBatchMismatch marks a response whose item count does not match the
// request. Nothing from such a response is assigned.
var ErrBatchMismatch = errors.New("summary: response length does not match batch")

// BatchError wraps whatever made a whole batch request unusable: a failed
// call, an unparseable response or a length mismatch. Every member of the
// batch is regenerated individually.
type BatchError struct {
	Size int
	Err  error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("summary: batch of %d: %v", e.Size, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// ErrGenerationUnavailable is returned when every generation request of a
// run failed. The caller should abort before delivery.
var ErrGenerationUnavailable = errors.New("summary: generation service unavailable")

// Generator produces model output for one prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Summarizer struct {
	gen       Generator
	budget    *ratelimit.Budget
	cache     *cache.Cache
	batchSize int
}

// New builds a Summarizer. The cache may be nil; the budget must not be.
func New(gen Generator, budget *ratelimit.Budget, c *cache.Cache, batchSize int) *Summarizer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Summarizer{gen: gen, budget: budget, cache: c, batchSize: batchSize}
}

type item struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

type runStats struct {
	issued int
	failed int
}

// Summarize fills Title and Summary on every article, preserving order and
// length. It returns ErrGenerationUnavailable only when at least one model
// request was issued and all of them failed; individual failures degrade to
// the original title plus a sentinel summary instead.
func (s *Summarizer) Summarize(ctx context.Context, articles []news.Article) ([]news.Article, error) {
	if len(articles) == 0 {
		return articles, nil
	}

	var st runStats

	// Cached articles skip generation entirely; the rest batch up in order.
	pending := make([]int, 0, len(articles))
	for i := range articles {
		if s.fromCache(&articles[i]) {
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += s.batchSize {
		end := min(start+s.batchSize, len(pending))
		s.summarizeBatch(ctx, articles, pending[start:end], &st)
	}

	if st.issued > 0 && st.failed == st.issued {
		return articles, fmt.Errorf("%w: all %d requests failed", ErrGenerationUnavailable, st.issued)
	}
	return articles, nil
}

func (s *Summarizer) summarizeBatch(ctx context.Context, articles []news.Article, idx []int, st *runStats) {
	batch := make([]*news.Article, len(idx))
	for j, i := range idx {
		batch[j] = &articles[i]
	}

	items, err := s.requestItems(ctx, buildPrompt(batch), len(batch), st)
	if err != nil {
		berr := &BatchError{Size: len(batch), Err: err}
		logger.Warn("batch summarization failed, regenerating per article", "err", berr)
		metrics.Global.IncrementBatchFailures()
		for _, a := range batch {
			s.summarizeSingle(ctx, a, st)
		}
		return
	}

	for j, a := range batch {
		a.Title = strings.TrimSpace(items[j].Title)
		a.Summary = strings.TrimSpace(items[j].Summary)
		if utf8.RuneCountInString(a.Summary) < minSummaryRunes {
			s.regenerateShort(ctx, a, st)
		}
		s.finish(a)
	}
}

// summarizeSingle is the degraded path after a batch failure.
func (s *Summarizer) summarizeSingle(ctx context.Context, a *news.Article, st *runStats) {
	items, err := s.requestItems(ctx, buildPrompt([]*news.Article{a}), 1, st)
	if err != nil {
		logger.Warn("article summarization failed, using fallback", "source", a.Source, "err", err)
		a.Title = originalTitle(a)
		a.Summary = sentinelSummary
		metrics.Global.IncrementSummaryFallbacks()
		return
	}

	a.Title = strings.TrimSpace(items[0].Title)
	a.Summary = strings.TrimSpace(items[0].Summary)
	s.finish(a)
}

// regenerateShort issues one supplementary request for an article whose
// batch summary came back missing or too short. On failure the short result
// stands; finish still guarantees non-empty fields.
func (s *Summarizer) regenerateShort(ctx context.Context, a *news.Article, st *runStats) {
	items, err := s.requestItems(ctx, buildPrompt([]*news.Article{a}), 1, st)
	if err != nil {
		logger.Debug("short summary regeneration failed", "source", a.Source, "err", err)
		return
	}
	a.Title = strings.TrimSpace(items[0].Title)
	a.Summary = strings.TrimSpace(items[0].Summary)
}

// finish guarantees non-empty output fields and caches model results.
func (s *Summarizer) finish(a *news.Article) {
	if a.Title == "" {
		a.Title = originalTitle(a)
	}
	if a.Summary == "" {
		a.Summary = sentinelSummary
		metrics.Global.IncrementSummaryFallbacks()
		return
	}

	metrics.Global.IncrementSummariesGenerated()
	if s.cache != nil {
		s.cache.Set(cacheKey(a), cache.Entry{Title: a.Title, Summary: a.Summary})
	}
}

func (s *Summarizer) fromCache(a *news.Article) bool {
	if s.cache == nil {
		return false
	}
	entry, ok := s.cache.Get(cacheKey(a))
	if !ok {
		return false
	}

	a.Title = entry.Title
	a.Summary = entry.Summary
	s.budget.RecordCacheHit(estimateTokens(a))
	return true
}

// requestItems issues one generation request and parses the response into
// exactly wantLen items. Counts toward the run's issued/failed totals; a
// budget rejection fails the request without issuing it.
func (s *Summarizer) requestItems(ctx context.Context, prompt string, wantLen int, st *runStats) ([]item, error) {
	if err := s.budget.Use(); err != nil {
		return nil, err
	}

	st.issued++
	raw, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		st.failed++
		return nil, err
	}

	items, err := parseItems(raw)
	if err != nil {
		return nil, err
	}
	if len(items) != wantLen {
		return nil, fmt.Errorf("summary: got %d items for %d articles: %w", len(items), wantLen, ErrBatchMismatch)
	}
	return items, nil
}

// parseItems strips code fences the model sometimes wraps around JSON, then
// parses the array.
func parseItems(raw string) ([]item, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var items []item
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, fmt.Errorf("summary: parse response: %w", err)
	}
	return items, nil
}

func buildPrompt(batch []*news.Article) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are preparing a telecom industry news digest. Summarize the %d article(s) below.\n\n", len(batch))

	for n, a := range batch {
		content := a.OriginalSummary
		if strings.TrimSpace(content) == "" {
			content = a.OriginalTitle
		}
		fmt.Fprintf(&b, "ARTICLE %d\nSource: %s\nTitle: %s\nContent: %s\n\n", n+1, a.Source, a.OriginalTitle, content)
	}

	fmt.Fprintf(&b, `Respond with ONLY a JSON array of exactly %d objects, one per article in the same order. Each object has two string fields:
"title": a clear, concise English headline (rewrite the original if it is vague or clickbait)
"summary": 2-3 sentences with the concrete facts: who, what, where, which numbers
No markdown fences, no extra fields, no commentary.`, len(batch))

	return b.String()
}

func originalTitle(a *news.Article) string {
	if t := strings.TrimSpace(a.OriginalTitle); t != "" {
		return t
	}
	return a.Link
}

func cacheKey(a *news.Article) string {
	return cache.Key(a.Source, a.OriginalTitle, a.OriginalSummary)
}

// estimateTokens guesses the prompt cost a cache hit avoided.
func estimateTokens(a *news.Article) int {
	return (len(a.OriginalTitle) + len(a.OriginalSummary)) / 4
}
