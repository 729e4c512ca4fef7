package index

import (
	"sort"
	"strings"

	"github.com/sneap/snipserve/pkg/snippet"
)

// DefaultMaxDistance is the edit-distance cutoff for fuzzy fallback.
const DefaultMaxDistance = 2

// FuzzySearch scans every snippet's trigger and keeps those within
// maxDistance edits of the query, ordered by (distance, trigger length).
// This is a full corpus scan; callers opt into it as a fallback mode rather
// than running it per keystroke.
func (t *Trie) FuzzySearch(query string, maxDistance, limit int) []snippet.Snippet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if maxDistance <= 0 {
		maxDistance = DefaultMaxDistance
	}
	lower := strings.ToLower(query)

	type scored struct {
		snip     snippet.Snippet
		distance int
	}

	ids := make([]int64, 0, len(t.snippets))
	for id := range t.snippets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matches []scored
	for _, id := range ids {
		s := t.snippets[id]
		d := Levenshtein(lower, strings.ToLower(s.Prefix))
		if d <= maxDistance {
			matches = append(matches, scored{*s, d})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].distance != matches[j].distance {
			return matches[i].distance < matches[j].distance
		}
		return len(matches[i].snip.Prefix) < len(matches[j].snip.Prefix)
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	results := make([]snippet.Snippet, len(matches))
	for i, m := range matches {
		results[i] = m.snip
	}
	return results
}

// Levenshtein computes the standard edit distance between a and b with unit
// cost for insertion, deletion and substitution. Two-row rolling matrix.
func Levenshtein(a, b string) int {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt(prev[j-1]+cost, minInt(curr[j-1]+1, prev[j]+1))
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
