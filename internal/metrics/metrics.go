package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsFetched       int64
	FeedFailures       int64
	TargetsScraped     int64
	ScrapeFailures     int64
	FeedArticles       int64
	ScrapedArticles    int64
	SeenFiltered       int64
	DuplicatesFiltered int64
	SummariesGenerated int64
	SummaryFallbacks   int64
	BatchFailures      int64
	DigestsSent        int64
	DeliveryFailures   int64

	// Timings
	LastRunDuration    time.Duration
	AverageRunDuration time.Duration
	TotalRunDuration   time.Duration
	RunCount           int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddFeedsFetched(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsFetched += int64(n)
}

func (m *Metrics) AddFeedFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedFailures += int64(n)
}

func (m *Metrics) AddTargetsScraped(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TargetsScraped += int64(n)
}

func (m *Metrics) AddScrapeFailures(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapeFailures += int64(n)
}

func (m *Metrics) AddFeedArticles(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedArticles += int64(n)
}

func (m *Metrics) AddScrapedArticles(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScrapedArticles += int64(n)
}

func (m *Metrics) AddSeenFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SeenFiltered += int64(n)
}

func (m *Metrics) AddDuplicatesFiltered(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFiltered += int64(n)
}

func (m *Metrics) IncrementSummariesGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummariesGenerated++
}

func (m *Metrics) IncrementSummaryFallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SummaryFallbacks++
}

func (m *Metrics) IncrementBatchFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BatchFailures++
}

func (m *Metrics) IncrementDigestsSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DigestsSent++
}

func (m *Metrics) IncrementDeliveryFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DeliveryFailures++
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastRunDuration = duration
	m.TotalRunDuration += duration
	m.RunCount++

	if m.RunCount > 0 {
		m.AverageRunDuration = m.TotalRunDuration / time.Duration(m.RunCount)
	}
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_fetched":           m.FeedsFetched,
		"feed_failures":           m.FeedFailures,
		"targets_scraped":         m.TargetsScraped,
		"scrape_failures":         m.ScrapeFailures,
		"feed_articles":           m.FeedArticles,
		"scraped_articles":        m.ScrapedArticles,
		"seen_filtered":           m.SeenFiltered,
		"duplicates_filtered":     m.DuplicatesFiltered,
		"summaries_generated":     m.SummariesGenerated,
		"summary_fallbacks":       m.SummaryFallbacks,
		"batch_failures":          m.BatchFailures,
		"digests_sent":            m.DigestsSent,
		"delivery_failures":       m.DeliveryFailures,
		"last_run_duration_ms":    m.LastRunDuration.Milliseconds(),
		"average_run_duration_ms": m.AverageRunDuration.Milliseconds(),
		"last_run_time":           m.LastRunTime.Format(time.RFC3339),
		"last_error_time":         m.LastErrorTime.Format(time.RFC3339),
		"last_error":              m.LastError,
		"is_healthy":              m.IsHealthy,
	}
}
