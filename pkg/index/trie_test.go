package index

import (
	"testing"

	"github.com/sneap/snipserve/pkg/snippet"
)

// corpus returns a small snippet set with overlapping triggers, names and
// scopes so one fixture covers the prefix, language and name-word paths.
func corpus() []snippet.Snippet {
	return []snippet.Snippet{
		{ID: 1, Prefix: "yapi", Name: "API Route Handler", Description: "Express route with error handling", Scope: []string{"typescript", "javascript"}},
		{ID: 2, Prefix: "yerr", Name: "Error Boundary", Description: "React error boundary component", Scope: []string{"typescriptreact"}},
		{ID: 3, Prefix: "yfetch", Name: "Fetch Wrapper", Description: "Typed fetch with retries", Scope: []string{"typescript"}},
		{ID: 4, Prefix: "yslice", Name: "Redux Slice", Description: "Redux toolkit slice", Scope: []string{"typescript"}},
		{ID: 5, Prefix: "ytest", Name: "Unit Test Block", Description: "Vitest describe and expect", Scope: nil},
		{ID: 6, Prefix: "zmap", Name: "Map Helper", Description: "Transform arrays", Scope: []string{"go"}},
	}
}

func buildTrie(t *testing.T) *Trie {
	t.Helper()
	tr := NewTrie()
	for _, s := range corpus() {
		s := s
		tr.Insert(&s, s.ID)
	}
	return tr
}

// Every snippet with a y-trigger must be reachable from the single
// character "y", and longer prefixes must only ever narrow that set.
func TestSearchNarrowsWithLongerPrefix(t *testing.T) {
	tr := buildTrie(t)

	testCases := []struct {
		prefix      string
		expectedIDs []int64
		description string
	}{
		{"y", []int64{1, 2, 3, 4, 5}, "single char hits all y-triggers"},
		{"ya", []int64{1}, "two chars narrows to yapi"},
		{"yap", []int64{1}, "three chars still yapi"},
		{"yapi", []int64{1}, "full trigger"},
		{"yf", []int64{3}, "distinct branch"},
		{"q", nil, "broken path yields empty"},
		{"yapix", nil, "overshoot yields empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			got := tr.Search(tc.prefix, 0, "")
			if len(got) != len(tc.expectedIDs) {
				t.Fatalf("Search(%q) returned %d results, want %d", tc.prefix, len(got), len(tc.expectedIDs))
			}
			seen := make(map[int64]bool)
			for _, s := range got {
				seen[s.ID] = true
			}
			for _, id := range tc.expectedIDs {
				if !seen[id] {
					t.Errorf("Search(%q) missing snippet %d", tc.prefix, id)
				}
			}
		})
	}
}

// Candidates at a longer prefix are always a subset of the candidates at
// any of its own prefixes.
func TestCandidateContainment(t *testing.T) {
	tr := buildTrie(t)

	prefixes := []string{"yapi", "yfetch", "yslice", "ytest", "zmap", "yerr"}
	for _, full := range prefixes {
		longer := tr.CandidateIDs(full)
		for cut := 1; cut < len(full); cut++ {
			shorter := tr.CandidateIDs(full[:cut])
			inShorter := make(map[int64]bool, len(shorter))
			for _, id := range shorter {
				inShorter[id] = true
			}
			for _, id := range longer {
				if !inShorter[id] {
					t.Errorf("candidates(%q) contains %d but candidates(%q) does not", full, id, full[:cut])
				}
			}
		}
	}
}

func TestSearchLanguageFilter(t *testing.T) {
	tr := buildTrie(t)

	got := tr.Search("y", 0, "typescriptreact")
	// yerr is scoped to typescriptreact; ytest has no scope and matches
	// everything.
	wantIDs := map[int64]bool{2: true, 5: true}
	if len(got) != len(wantIDs) {
		t.Fatalf("expected %d results, got %d", len(wantIDs), len(got))
	}
	for _, s := range got {
		if !wantIDs[s.ID] {
			t.Errorf("unexpected snippet %d (%s) for typescriptreact", s.ID, s.Prefix)
		}
	}
}

// Name and description words are indexed too, so a search for "fetch"
// reaches the Fetch Wrapper without its trigger.
func TestSearchByNameWord(t *testing.T) {
	tr := buildTrie(t)

	got := tr.Search("fetch", 0, "")
	if len(got) != 1 || got[0].ID != 3 {
		t.Fatalf("expected Fetch Wrapper, got %v", got)
	}

	// Description words past the stopword filter are reachable as well.
	got = tr.Search("boundary", 0, "")
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("expected Error Boundary via description word, got %v", got)
	}
}

func TestSearchLimit(t *testing.T) {
	tr := buildTrie(t)

	got := tr.Search("y", 2, "")
	if len(got) != 2 {
		t.Fatalf("limit 2 returned %d results", len(got))
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	tr := buildTrie(t)

	upper := tr.Search("YAP", 0, "")
	lower := tr.Search("yap", 0, "")
	if len(upper) != len(lower) || len(upper) == 0 {
		t.Fatalf("case folding broken: %d vs %d results", len(upper), len(lower))
	}
	if upper[0].ID != lower[0].ID {
		t.Errorf("case folding changed ranking: %d vs %d", upper[0].ID, lower[0].ID)
	}
}

func TestRebuildReplacesCorpus(t *testing.T) {
	tr := buildTrie(t)

	tr.Rebuild([]snippet.Snippet{
		{ID: 9, Prefix: "fresh", Name: "Fresh"},
	})

	if tr.Len() != 1 {
		t.Fatalf("expected 1 snippet after rebuild, got %d", tr.Len())
	}
	if got := tr.Search("y", 0, ""); len(got) != 0 {
		t.Errorf("old corpus still reachable after rebuild: %v", got)
	}
	if got := tr.Search("fre", 0, ""); len(got) != 1 || got[0].ID != 9 {
		t.Errorf("new corpus not reachable after rebuild: %v", got)
	}
}

func TestStats(t *testing.T) {
	tr := buildTrie(t)

	stats := tr.Stats()
	if stats.SnippetCount != 6 {
		t.Errorf("SnippetCount = %d, want 6", stats.SnippetCount)
	}
	if stats.NodeCount <= 1 {
		t.Errorf("NodeCount = %d, want > 1", stats.NodeCount)
	}
	if stats.AvgTerminalDepth <= 0 {
		t.Errorf("AvgTerminalDepth = %f, want > 0", stats.AvgTerminalDepth)
	}

	empty := NewTrie().Stats()
	if empty.NodeCount != 1 || empty.SnippetCount != 0 || empty.AvgTerminalDepth != 0 {
		t.Errorf("empty trie stats off: %+v", empty)
	}
}

func TestIndexedTerms(t *testing.T) {
	s := &snippet.Snippet{
		Prefix:      "yapi",
		Name:        "API Route Handler",
		Description: "An Express endpoint with the error handling",
	}

	terms := IndexedTerms(s)
	want := map[string]bool{
		"yapi": true, "api": true, "route": true, "handler": true,
		"express": true, "endpoint": true, "error": true, "handling": true,
	}
	if len(terms) != len(want) {
		t.Fatalf("got %d terms %v, want %d", len(terms), terms, len(want))
	}
	for _, term := range terms {
		if !want[term] {
			t.Errorf("unexpected indexed term %q", term)
		}
	}
}

func TestIndexedTermsCountRunes(t *testing.T) {
	// "éé" is two runes but four bytes; "éét" three runes but five.
	// Word-length thresholds must count characters, not bytes, so neither
	// clears its minimum even though their byte lengths do.
	s := &snippet.Snippet{
		Prefix:      "yminuit",
		Name:        "éé scheduler",
		Description: "runs éét jobs overnight",
	}

	terms := IndexedTerms(s)
	got := map[string]bool{}
	for _, term := range terms {
		got[term] = true
	}

	if got["éé"] {
		t.Errorf("two-rune name word indexed, got %v", terms)
	}
	if got["éét"] {
		t.Errorf("three-rune description word indexed, got %v", terms)
	}
	if !got["scheduler"] || !got["overnight"] {
		t.Errorf("expected surrounding words indexed, got %v", terms)
	}
}
