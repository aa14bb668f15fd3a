package news

import "strings"

// titleKeyLen bounds the normalized title used for near-duplicate detection.
const titleKeyLen = 60

// Dedupe removes within-run duplicates, keeping the first occurrence and
// preserving order. An article is a duplicate when its link was already
// seen or when its normalized title key collides with an earlier one.
func Dedupe(articles []Article) []Article {
	seenLinks := make(map[string]struct{}, len(articles))
	seenTitles := make(map[string]struct{}, len(articles))

	unique := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, dup := seenLinks[a.Link]; dup {
			continue
		}
		key := TitleKey(a.OriginalTitle)
		if _, dup := seenTitles[key]; dup {
			continue
		}
		seenLinks[a.Link] = struct{}{}
		seenTitles[key] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}

// TitleKey normalizes a title for near-duplicate detection: lowercased,
// trimmed, truncated to 60 runes.
func TitleKey(title string) string {
	return TruncateRunes(strings.TrimSpace(strings.ToLower(title)), titleKeyLen)
}
