// Package news holds the digest candidate model and the pure filtering
// steps shared by the source adapters and the pipeline.
package news

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Article origin types.
const (
	TypeRSS     = "rss"
	TypeScraped = "scraped"
)

// Caps applied at ingestion.
const (
	MaxSummaryRunes = 1000
	MaxContentRunes = 2000
)

// Article is a single digest candidate. Link is the identity key used by
// deduplication and the seen-store. Title and Summary carry the generated
// values after summarization; the original fields are always retained.
type Article struct {
	Source          string
	Group           string
	OriginalTitle   string
	OriginalSummary string
	Link            string
	Published       time.Time // zero when the source carries no usable date
	MatchedKeywords []string
	Type            string

	Title   string
	Summary string
}

// PublishedLabel renders the published date for display.
func (a Article) PublishedLabel() string {
	if a.Published.IsZero() {
		return "unknown"
	}
	return a.Published.Format("2006-01-02")
}

// KeywordRule admits articles whose text contains Keyword. An empty Groups
// list applies the rule to every group.
type KeywordRule struct {
	Keyword string
	Groups  []string
}

// AppliesTo reports whether the rule is in effect for the given group.
// Group labels compare case-insensitively.
func (r KeywordRule) AppliesTo(group string) bool {
	if len(r.Groups) == 0 {
		return true
	}
	for _, g := range r.Groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// FeedSource is one configured RSS feed.
type FeedSource struct {
	Name  string
	URL   string
	Group string
}

// ScrapeTarget is one configured index page for article link discovery.
// Selector holds comma-separated CSS selectors tried independently.
type ScrapeTarget struct {
	Name     string
	URL      string
	Selector string
	Group    string
}

// TruncateRunes caps s at n runes without splitting a multi-byte character.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
