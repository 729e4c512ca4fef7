package index

import (
	"fmt"
	"testing"

	"github.com/sneap/snipserve/pkg/snippet"
)

func TestLevenshtein(t *testing.T) {
	testCases := []struct {
		a, b        string
		want        int
		description string
	}{
		{"", "", 0, "both empty"},
		{"", "yapi", 4, "empty against word"},
		{"yapi", "", 4, "word against empty"},
		{"yapi", "yapi", 0, "identical"},
		{"yap", "yapi", 1, "missing character at end"},
		{"ypi", "yapi", 1, "missing character in middle"},
		{"yaip", "yapi", 2, "character transposition"},
		{"yapu", "yapi", 1, "character substitution"},
		{"yapix", "yapi", 1, "extra character at end"},
		{"kitten", "sitting", 3, "classic case"},
		{"flaw", "lawn", 2, "delete plus insert"},
		{"café", "cafe", 1, "multibyte rune substitution"},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			if got := Levenshtein(tc.a, tc.b); got != tc.want {
				t.Errorf("Levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestFuzzySearch(t *testing.T) {
	tr := buildTrie(t)

	// "yaip" matches nothing exactly but is two edits from yapi.
	got := tr.FuzzySearch("yaip", DefaultMaxDistance, 0)
	if len(got) == 0 {
		t.Fatal("expected fuzzy matches for yaip")
	}
	if got[0].Prefix != "yapi" {
		t.Errorf("closest match = %q, want yapi", got[0].Prefix)
	}
	for _, s := range got {
		if d := Levenshtein("yaip", s.Prefix); d > DefaultMaxDistance {
			t.Errorf("match %q at distance %d exceeds cutoff", s.Prefix, d)
		}
	}
}

func TestFuzzySearchOrderedByDistance(t *testing.T) {
	tr := NewTrie()
	for _, s := range []snippet.Snippet{
		{ID: 1, Prefix: "yfetch", Name: "Fetch"},
		{ID: 2, Prefix: "yfetc", Name: "Closer"},
		{ID: 3, Prefix: "yfet", Name: "Closest"},
	} {
		s := s
		tr.Insert(&s, s.ID)
	}

	got := tr.FuzzySearch("yfet", 2, 0)
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	wantOrder := []string{"yfet", "yfetc", "yfetch"}
	for i, want := range wantOrder {
		if got[i].Prefix != want {
			t.Errorf("position %d: got %q, want %q", i, got[i].Prefix, want)
		}
	}
}

func TestFuzzySearchCutoff(t *testing.T) {
	tr := buildTrie(t)

	// zmap is more than two edits from yfetch and must never surface.
	for _, s := range tr.FuzzySearch("yfetch", DefaultMaxDistance, 0) {
		if s.Prefix == "zmap" {
			t.Error("match beyond distance cutoff surfaced")
		}
	}
}

func BenchmarkFuzzySearch(b *testing.B) {
	tr := NewTrie()
	for i := 0; i < 1000; i++ {
		s := snippet.Snippet{ID: int64(i + 1), Prefix: fmt.Sprintf("trig%d", i), Name: "Bench"}
		tr.Insert(&s, s.ID)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		inputs := []string{"trg123", "trig1", "trigg2", "troig3", "tirg4"}
		tr.FuzzySearch(inputs[i%len(inputs)], DefaultMaxDistance, 10)
	}
}

func TestFuzzySearchLimit(t *testing.T) {
	tr := buildTrie(t)

	got := tr.FuzzySearch("yerr", DefaultMaxDistance, 1)
	if len(got) != 1 {
		t.Fatalf("limit 1 returned %d matches", len(got))
	}
	if got[0].Prefix != "yerr" {
		t.Errorf("exact trigger not first under limit: %q", got[0].Prefix)
	}
}
