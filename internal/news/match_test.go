package news

import (
	"reflect"
	"testing"
)

func TestMatchKeywords_UnrestrictedAppliesToAnyGroup(t *testing.T) {
	rules := []KeywordRule{{Keyword: "5G"}}

	for _, group := range []string{"regulatory", "technology", ""} {
		got := MatchKeywords("New 5G spectrum auction announced", group, rules)
		if len(got) != 1 || got[0] != "5G" {
			t.Errorf("group %q: got %v, want [5G]", group, got)
		}
	}
}

func TestMatchKeywords_RestrictedGroup(t *testing.T) {
	rules := []KeywordRule{{Keyword: "spectrum", Groups: []string{"regulatory"}}}

	if got := MatchKeywords("spectrum licensing round", "technology", rules); len(got) != 0 {
		t.Errorf("restricted rule matched outside its group: %v", got)
	}
	if got := MatchKeywords("spectrum licensing round", "regulatory", rules); len(got) != 1 {
		t.Errorf("restricted rule did not match in its own group: %v", got)
	}
	// Group labels compare case-insensitively.
	if got := MatchKeywords("spectrum licensing round", "Regulatory", rules); len(got) != 1 {
		t.Errorf("group comparison should ignore case: %v", got)
	}
}

func TestMatchKeywords_SubstringWithoutBoundaries(t *testing.T) {
	rules := []KeywordRule{{Keyword: "ai"}}

	got := MatchKeywords("New domain registration rules published", "", rules)
	if len(got) != 1 {
		t.Errorf("expected substring match of %q inside %q, got %v", "ai", "domain", got)
	}
}

func TestMatchKeywords_CaseInsensitive(t *testing.T) {
	rules := []KeywordRule{{Keyword: "Roaming"}}

	got := MatchKeywords("EU ROAMING charges abolished", "", rules)
	if len(got) != 1 || got[0] != "Roaming" {
		t.Errorf("got %v, want the keyword as configured", got)
	}
}

func TestMatchKeywords_RuleOrderAndNoDuplicates(t *testing.T) {
	rules := []KeywordRule{
		{Keyword: "fiber"},
		{Keyword: "5G"},
		{Keyword: "FIBER"}, // duplicate of the first rule
		{Keyword: "satellite"},
	}

	got := MatchKeywords("fiber rollout and 5G coverage targets", "", rules)
	want := []string{"fiber", "5G"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMatchKeywords_EmptyAndBlankKeywordsSkipped(t *testing.T) {
	rules := []KeywordRule{{Keyword: ""}, {Keyword: "   "}}

	if got := MatchKeywords("anything at all", "", rules); len(got) != 0 {
		t.Errorf("blank keywords must never match, got %v", got)
	}
}

func TestMatchKeywords_NoMatch(t *testing.T) {
	rules := []KeywordRule{{Keyword: "spectrum"}, {Keyword: "roaming"}}

	if got := MatchKeywords("quarterly earnings call", "", rules); got != nil {
		t.Errorf("expected nil for no matches, got %v", got)
	}
}
