// Package render turns the enriched article list into the digest documents
// that get delivered: an HTML body, a plain-text alternative and the
// subject line.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/regwatch/telebrief/internal/news"
)

// Renderer carries the presentation configuration. Group order decides
// section ordering; keywords feed the footer.
type Renderer struct {
	groupOrder []string
	keywords   []string
}

func New(groupOrder, keywords []string) *Renderer {
	return &Renderer{groupOrder: groupOrder, keywords: keywords}
}

func Subject(date time.Time) string {
	return fmt.Sprintf("Telecom Regulatory Intelligence – %s", date.Format("2006-01-02"))
}

type section struct {
	Name     string
	Articles []news.Article
}

type digestData struct {
	Date         string
	Total        int
	FeedCount    int
	ScrapedCount int
	Sections     []section
	Keywords     []string
}

// HTML renders the digest email body.
func (r *Renderer) HTML(articles []news.Article, date time.Time) (string, error) {
	data := digestData{
		Date:     date.Format("2006-01-02"),
		Total:    len(articles),
		Sections: buildSections(articles, r.groupOrder),
		Keywords: r.keywords,
	}
	for _, a := range articles {
		if a.Type == news.TypeScraped {
			data.ScrapedCount++
		} else {
			data.FeedCount++
		}
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render: execute digest template: %w", err)
	}
	return buf.String(), nil
}

// Text renders the plain-text alternative part.
func (r *Renderer) Text(articles []news.Article, date time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", Subject(date))
	fmt.Fprintf(&b, "%d article(s)\n\n", len(articles))

	if len(articles) == 0 {
		b.WriteString("No relevant articles were found today matching your keywords.\n")
		return b.String()
	}

	for _, s := range buildSections(articles, r.groupOrder) {
		if s.Name != "" {
			fmt.Fprintf(&b, "== %s ==\n\n", s.Name)
		}
		for _, a := range s.Articles {
			fmt.Fprintf(&b, "%s\n%s · %s\n", a.Title, a.Source, a.PublishedLabel())
			if len(a.MatchedKeywords) > 0 {
				fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(a.MatchedKeywords, ", "))
			}
			fmt.Fprintf(&b, "%s\n%s\n\n", a.Summary, a.Link)
		}
	}
	return b.String()
}

// buildSections groups articles for display. Configured groups come first
// in their configured order, remaining groups follow in first-seen order,
// and group labels match case-insensitively. Articles without a group land
// in an unnamed section rendered without a heading.
func buildSections(articles []news.Article, groupOrder []string) []section {
	if len(articles) == 0 {
		return nil
	}

	index := make(map[string]int)
	var out []section

	add := func(name string) int {
		name = strings.TrimSpace(name)
		key := strings.ToLower(name)
		if pos, ok := index[key]; ok {
			return pos
		}
		index[key] = len(out)
		out = append(out, section{Name: name})
		return len(out) - 1
	}

	for _, g := range groupOrder {
		if strings.TrimSpace(g) != "" {
			add(g)
		}
	}
	for _, a := range articles {
		pos := add(a.Group)
		out[pos].Articles = append(out[pos].Articles, a)
	}

	kept := out[:0]
	for _, s := range out {
		if len(s.Articles) > 0 {
			kept = append(kept, s)
		}
	}
	return kept
}

var digestTmpl = template.Must(template.New("digest").Funcs(template.FuncMap{
	"joinDots": func(ss []string) string { return strings.Join(ss, " · ") },
}).Parse(digestTemplate))

const digestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family:Arial,sans-serif;max-width:700px;margin:0 auto;padding:20px;color:#1a1a1a;">

<div style="background:linear-gradient(135deg,#1a73e8,#0d47a1);padding:24px 28px;border-radius:8px;margin-bottom:28px;">
<h1 style="margin:0;color:white;font-size:22px;font-weight:700;">Telecom Regulatory Intelligence</h1>
<p style="margin:6px 0 0 0;color:#b3d4ff;font-size:13px;">{{.Date}} &middot; {{.Total}} article{{if ne .Total 1}}s{{end}} &middot; {{.FeedCount}} RSS &middot; {{.ScrapedCount}} Web</p>
</div>

{{if .Sections}}{{range .Sections}}{{if .Name}}<h2 style="font-size:15px;color:#0d47a1;border-bottom:2px solid #e8f4fd;padding-bottom:6px;margin:28px 0 16px 0;text-transform:uppercase;letter-spacing:1px;">{{.Name}}</h2>
{{end}}{{range .Articles}}<div style="border-left:3px solid #1a73e8;padding:12px 16px;margin-bottom:24px;background:#fafafa;border-radius:0 6px 6px 0;">
<p style="margin:0 0 4px 0;font-size:11px;color:#888;text-transform:uppercase;letter-spacing:0.5px;">{{.Source}}{{if eq .Type "scraped"}} <span style="background:#fff3e0;color:#e65100;padding:2px 6px;border-radius:4px;font-size:10px;margin-left:6px;">WEB</span>{{end}} &nbsp;&middot;&nbsp; {{.PublishedLabel}}</p>
<h3 style="margin:4px 0 8px 0;font-size:16px;color:#1a1a1a;"><a href="{{.Link}}" style="color:#1a1a1a;text-decoration:none;">{{.Title}}</a></h3>
<p style="margin:0 0 10px 0;font-size:14px;color:#444;line-height:1.6;">{{.Summary}}</p>
{{if .MatchedKeywords}}<div style="margin-bottom:6px;">{{range .MatchedKeywords}}<span style="background:#e8f4fd;color:#1a73e8;padding:2px 8px;border-radius:12px;font-size:11px;margin-right:4px;">{{.}}</span>{{end}}</div>
{{end}}<a href="{{.Link}}" style="font-size:12px;color:#1a73e8;">Read full article &rarr;</a>
</div>
{{end}}{{end}}{{else}}<p style="color:#666;">No relevant articles were found today matching your keywords.</p>
{{end}}
<div style="border-top:1px solid #eee;margin-top:32px;padding-top:16px;font-size:11px;color:#999;">
<p>This digest is generated automatically.{{if .Keywords}}<br>Keywords monitored: {{joinDots .Keywords}}{{end}}</p>
</div>

</body>
</html>
`
