package sheets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/regwatch/telebrief/internal/news"
)

// fileConfig is the local YAML layout:
//
//	feeds:
//	  - name: Teleborsa
//	    url: https://example.com/rss
//	    group: Market
//	keywords:
//	  - keyword: 5G
//	  - keyword: spectrum
//	    groups: [Regulatory]
//	recipients:
//	  - team@example.com
//	scrape:
//	  - name: NRA news
//	    url: https://example.com/news
//	    selector: ".news-list a"
//	    group: Regulatory
type fileConfig struct {
	Feeds []struct {
		Name  string `yaml:"name"`
		URL   string `yaml:"url"`
		Group string `yaml:"group"`
	} `yaml:"feeds"`
	Keywords []struct {
		Keyword string   `yaml:"keyword"`
		Groups  []string `yaml:"groups"`
	} `yaml:"keywords"`
	Recipients []string `yaml:"recipients"`
	Scrape     []struct {
		Name     string `yaml:"name"`
		URL      string `yaml:"url"`
		Selector string `yaml:"selector"`
		Group    string `yaml:"group"`
	} `yaml:"scrape"`
}

// LoadFile reads the source lists from a local YAML file.
func LoadFile(path string) (*Sources, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sheets: open sources file: %w", err)
	}
	defer f.Close()

	var cfg fileConfig
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("sheets: decode sources file: %w", err)
	}

	src := &Sources{Recipients: cfg.Recipients}
	for _, f := range cfg.Feeds {
		if f.URL == "" {
			continue
		}
		src.Feeds = append(src.Feeds, news.FeedSource{Name: f.Name, URL: f.URL, Group: f.Group})
	}
	for _, k := range cfg.Keywords {
		if k.Keyword == "" {
			continue
		}
		src.Keywords = append(src.Keywords, news.KeywordRule{Keyword: k.Keyword, Groups: k.Groups})
	}
	for _, s := range cfg.Scrape {
		if s.URL == "" {
			continue
		}
		selector := s.Selector
		if selector == "" {
			selector = "a"
		}
		src.Targets = append(src.Targets, news.ScrapeTarget{Name: s.Name, URL: s.URL, Selector: selector, Group: s.Group})
	}
	return src, nil
}
