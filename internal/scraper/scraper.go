// Package scraper discovers article links on configured index pages and
// extracts article content for keyword matching.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/news"
)

const (
	// maxLinksPerTarget caps discovery at the first 30 links per index page.
	maxLinksPerTarget = 30
	// minLinkTextRunes: anchors with visible text this short are navigation
	// noise, not article links.
	minLinkTextRunes = 5
	// minContainerRunes: a container selector must yield more text than this
	// to be accepted as the article body.
	minContainerRunes = 200
)

// boilerplateSelector removes page chrome before extraction.
const boilerplateSelector = "nav, header, footer, script, style, aside, form"

// containerSelectors are tried in order for the article body.
var containerSelectors = []string{
	"article",
	"main",
	".content",
	".article-body",
	".entry-content",
	".post-content",
	"#content",
}

type Scraper struct {
	client         *http.Client
	userAgent      string
	acceptLanguage string
	delay          time.Duration
}

// New builds a Scraper. delay is the fixed pause between successive article
// fetches on the same run.
func New(client *http.Client, userAgent, acceptLanguage string, delay time.Duration) *Scraper {
	if client == nil {
		client = http.DefaultClient
	}
	return &Scraper{client: client, userAgent: userAgent, acceptLanguage: acceptLanguage, delay: delay}
}

// Link is one discovered article link.
type Link struct {
	Text string
	URL  string
}

type Stats struct {
	TargetsOK     int
	TargetsFailed int
	PagesFailed   int
}

// FetchAll walks every target: discovers article links on the index page,
// fetches each article and keeps those the keyword rules admit. An article
// page that cannot be fetched is kept only if its link text alone matches.
// A URL fetched for an earlier target is not fetched again.
func (s *Scraper) FetchAll(ctx context.Context, targets []news.ScrapeTarget, rules []news.KeywordRule) ([]news.Article, Stats) {
	var stats Stats
	var articles []news.Article
	fetched := map[string]struct{}{}

	for _, target := range targets {
		links, err := s.DiscoverLinks(ctx, target)
		if err != nil {
			stats.TargetsFailed++
			logger.Warn("index fetch failed", "target", target.Name, "url", target.URL, "err", err)
			continue
		}
		stats.TargetsOK++
		logger.Debug("links discovered", "target", target.Name, "links", len(links))

		source := target.Name
		if source == "" {
			source = target.URL
		}

		first := true
		for _, link := range links {
			if _, dup := fetched[link.URL]; dup {
				continue
			}
			fetched[link.URL] = struct{}{}

			if !first {
				select {
				case <-ctx.Done():
					return articles, stats
				case <-time.After(s.delay):
				}
			}
			first = false

			text, err := s.ExtractContent(ctx, link.URL)
			if err != nil {
				stats.PagesFailed++
				logger.Debug("article fetch failed", "url", link.URL, "err", err)
				text = "" // the link text alone can still admit the article
			}

			matched := news.MatchKeywords(link.Text+" "+text, target.Group, rules)
			if len(matched) == 0 {
				continue
			}

			title := link.Text
			if title == "" {
				title = link.URL
			}

			articles = append(articles, news.Article{
				Source:          source,
				Group:           target.Group,
				OriginalTitle:   title,
				OriginalSummary: news.TruncateRunes(text, news.MaxSummaryRunes),
				Link:            link.URL,
				MatchedKeywords: matched,
				Type:            news.TypeScraped,
			})
		}
	}

	logger.Info("targets processed", "ok", stats.TargetsOK, "failed", stats.TargetsFailed, "articles", len(articles))
	return articles, stats
}

// DiscoverLinks collects article links from the target's index page. The
// comma-separated selectors are tried independently and their results
// unioned. Relative hrefs resolve against the index page's scheme and host,
// only same-host links are kept, anchors with text of 5 runes or fewer are
// dropped, and the first 30 unique links survive in appearance order.
func (s *Scraper) DiscoverLinks(ctx context.Context, target news.ScrapeTarget) ([]Link, error) {
	doc, err := s.fetchDocument(ctx, target.URL)
	if err != nil {
		return nil, err
	}

	index, err := url.Parse(target.URL)
	if err != nil {
		return nil, fmt.Errorf("scraper: parse target url %s: %w", target.URL, err)
	}
	base := &url.URL{Scheme: index.Scheme, Host: index.Host}

	seen := map[string]struct{}{}
	var links []Link
	for _, selector := range strings.Split(target.Selector, ",") {
		selector = strings.TrimSpace(selector)
		if selector == "" {
			continue
		}
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			href = strings.TrimSpace(href)
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript") {
				return
			}

			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			resolved := base.ResolveReference(ref)
			if resolved.Host != index.Host {
				return
			}

			text := normalizeSpace(sel.Text())
			if utf8.RuneCountInString(text) <= minLinkTextRunes {
				return
			}

			u := resolved.String()
			if _, dup := seen[u]; dup {
				return
			}
			seen[u] = struct{}{}
			links = append(links, Link{Text: text, URL: u})
		})
	}

	if len(links) > maxLinksPerTarget {
		links = links[:maxLinksPerTarget]
	}
	return links, nil
}

// ExtractContent fetches an article page and returns its body text: page
// chrome is removed, the container selectors are tried in order and the
// first with more than 200 runes wins, otherwise all paragraphs are joined.
// The result is capped at 2000 runes.
func (s *Scraper) ExtractContent(ctx context.Context, articleURL string) (string, error) {
	doc, err := s.fetchDocument(ctx, articleURL)
	if err != nil {
		return "", err
	}

	doc.Find(boilerplateSelector).Remove()

	for _, selector := range containerSelectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		text := normalizeSpace(container.Text())
		if utf8.RuneCountInString(text) > minContainerRunes {
			return news.TruncateRunes(text, news.MaxContentRunes), nil
		}
	}

	var parts []string
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if t := normalizeSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return news.TruncateRunes(strings.Join(parts, " "), news.MaxContentRunes), nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if s.acceptLanguage != "" {
		req.Header.Set("Accept-Language", s.acceptLanguage)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scraper: fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scraper: fetch %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("scraper: parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
