package news

import "strings"

// MatchKeywords returns the keywords whose rules admit text for the given
// group, in rule order without duplicates. Matching is a plain
// case-insensitive substring test with no word boundaries, so "ai" admits
// "domain".
func MatchKeywords(text, group string, rules []KeywordRule) []string {
	lowered := strings.ToLower(text)

	var matched []string
	seen := map[string]struct{}{}
	for _, r := range rules {
		if !r.AppliesTo(group) {
			continue
		}
		keyword := strings.TrimSpace(r.Keyword)
		if keyword == "" {
			continue
		}
		k := strings.ToLower(keyword)
		if _, dup := seen[k]; dup {
			continue
		}
		if strings.Contains(lowered, k) {
			seen[k] = struct{}{}
			matched = append(matched, keyword)
		}
	}
	return matched
}
