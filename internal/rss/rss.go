// Package rss turns configured feeds into keyword-matched digest candidates.
package rss

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/news"
)

// feedConcurrency bounds parallel feed fetches.
const feedConcurrency = 4

type Fetcher struct {
	client    *http.Client
	userAgent string
}

func New(client *http.Client, userAgent string) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &Fetcher{client: client, userAgent: userAgent}
}

type Stats struct {
	FeedsOK     int
	FeedsFailed int
}

// FetchAll fetches every feed and returns the keyword-matched articles.
// Feeds are fetched with bounded parallelism but merged in configuration
// order, and one feed's failure never aborts the others. Entries with a
// known date older than maxAgeDays are dropped; entries with no usable
// date are kept.
func (f *Fetcher) FetchAll(ctx context.Context, feeds []news.FeedSource, rules []news.KeywordRule, maxAgeDays int) ([]news.Article, Stats) {
	cutoff := time.Now().UTC().AddDate(0, 0, -maxAgeDays)

	results := make([][]news.Article, len(feeds))
	errs := make([]error, len(feeds))

	sem := make(chan struct{}, feedConcurrency)
	var wg sync.WaitGroup
	for i, feed := range feeds {
		wg.Add(1)
		go func(i int, feed news.FeedSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i], errs[i] = f.fetchFeed(ctx, feed, rules, cutoff)
		}(i, feed)
	}
	wg.Wait()

	var stats Stats
	var articles []news.Article
	for i := range feeds {
		if errs[i] != nil {
			stats.FeedsFailed++
			logger.Warn("feed fetch failed", "url", feeds[i].URL, "err", errs[i])
			continue
		}
		stats.FeedsOK++
		articles = append(articles, results[i]...)
	}

	logger.Info("feeds processed", "ok", stats.FeedsOK, "failed", stats.FeedsFailed, "articles", len(articles))
	return articles, stats
}

func (f *Fetcher) fetchFeed(ctx context.Context, src news.FeedSource, rules []news.KeywordRule, cutoff time.Time) ([]news.Article, error) {
	parser := gofeed.NewParser()
	parser.Client = f.client
	parser.UserAgent = f.userAgent

	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("rss: parse %s: %w", src.URL, err)
	}

	source := src.Name
	if source == "" {
		source = strings.TrimSpace(feed.Title)
	}
	if source == "" {
		source = src.URL
	}

	var kept []news.Article
	for _, item := range feed.Items {
		var published time.Time
		switch {
		case item.PublishedParsed != nil:
			published = item.PublishedParsed.UTC()
		case item.UpdatedParsed != nil:
			published = item.UpdatedParsed.UTC()
		}
		// Undated entries are never age-dropped.
		if !published.IsZero() && published.Before(cutoff) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		matched := news.MatchKeywords(item.Title+" "+summary, src.Group, rules)
		if len(matched) == 0 {
			continue
		}

		kept = append(kept, news.Article{
			Source:          source,
			Group:           src.Group,
			OriginalTitle:   strings.TrimSpace(item.Title),
			OriginalSummary: news.TruncateRunes(strings.TrimSpace(summary), news.MaxSummaryRunes),
			Link:            strings.TrimSpace(item.Link),
			Published:       published,
			MatchedKeywords: matched,
			Type:            news.TypeRSS,
		})
	}

	logger.Debug("feed processed", "source", source, "kept", len(kept), "items", len(feed.Items))
	return kept, nil
}
