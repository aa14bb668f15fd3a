// Package sheets loads the run's source lists: RSS feeds, keyword rules,
// recipients and scrape targets. They live either in a published
// spreadsheet (one CSV export URL per tab) or in a local YAML file.
package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/regwatch/telebrief/internal/logger"
	"github.com/regwatch/telebrief/internal/news"
)

// Sources is the full set of run inputs regardless of where they came from.
type Sources struct {
	Feeds      []news.FeedSource
	Keywords   []news.KeywordRule
	Recipients []string
	Targets    []news.ScrapeTarget
}

// TabURLs holds the CSV export URL of each spreadsheet tab. Feeds and
// Keywords are required; Recipients and Scrape may be empty.
type TabURLs struct {
	Feeds      string
	Keywords   string
	Recipients string
	Scrape     string
}

type Loader struct {
	client *http.Client
}

func NewLoader(client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{client: client}
}

// LoadTabs fetches and parses each configured tab. Rows are kept only when
// their "active" column equals "yes" (case-insensitive).
func (l *Loader) LoadTabs(ctx context.Context, urls TabURLs) (*Sources, error) {
	src := &Sources{}

	rows, err := l.fetchTab(ctx, urls.Feeds)
	if err != nil {
		return nil, fmt.Errorf("sheets: feeds tab: %w", err)
	}
	for _, row := range rows {
		if !rowActive(row) {
			continue
		}
		url := strings.TrimSpace(row["url"])
		if url == "" {
			logger.Warn("feeds tab row without url skipped")
			continue
		}
		src.Feeds = append(src.Feeds, news.FeedSource{
			Name:  strings.TrimSpace(row["name"]),
			URL:   url,
			Group: strings.TrimSpace(row["group"]),
		})
	}

	rows, err = l.fetchTab(ctx, urls.Keywords)
	if err != nil {
		return nil, fmt.Errorf("sheets: keywords tab: %w", err)
	}
	for _, row := range rows {
		if !rowActive(row) {
			continue
		}
		keyword := strings.TrimSpace(row["keyword"])
		if keyword == "" {
			continue
		}
		src.Keywords = append(src.Keywords, news.KeywordRule{
			Keyword: keyword,
			Groups:  splitGroups(row["groups"]),
		})
	}

	if urls.Recipients != "" {
		rows, err = l.fetchTab(ctx, urls.Recipients)
		if err != nil {
			return nil, fmt.Errorf("sheets: recipients tab: %w", err)
		}
		for _, row := range rows {
			if !rowActive(row) {
				continue
			}
			if email := strings.TrimSpace(row["email"]); email != "" {
				src.Recipients = append(src.Recipients, email)
			}
		}
	}

	if urls.Scrape != "" {
		rows, err = l.fetchTab(ctx, urls.Scrape)
		if err != nil {
			return nil, fmt.Errorf("sheets: scrape tab: %w", err)
		}
		for _, row := range rows {
			if !rowActive(row) {
				continue
			}
			url := strings.TrimSpace(row["url"])
			if url == "" {
				continue
			}
			selector := strings.TrimSpace(row["selector"])
			if selector == "" {
				selector = "a"
			}
			src.Targets = append(src.Targets, news.ScrapeTarget{
				Name:     strings.TrimSpace(row["name"]),
				URL:      url,
				Selector: selector,
				Group:    strings.TrimSpace(row["group"]),
			})
		}
	}

	return src, nil
}

// fetchTab downloads one CSV tab and returns its rows keyed by the
// lowercased header row.
func (l *Loader) fetchTab(ctx context.Context, url string) ([]map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}

	return parseCSV(resp.Body)
}

func parseCSV(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // sheet exports can have ragged rows

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowActive(row map[string]string) bool {
	return strings.EqualFold(strings.TrimSpace(row["active"]), "yes")
}

func splitGroups(raw string) []string {
	var groups []string
	for _, g := range strings.Split(raw, ";") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
