package index

import (
	"sort"
	"strings"

	"github.com/sneap/snipserve/pkg/snippet"
)

// RankSnippets orders candidates for a lowercased query. Criteria, highest
// priority first, each only breaking ties left by the one above:
//
//  1. trigger equals the query
//  2. trigger starts with the query
//  3. shorter trigger
//  4. name contains the query
//  5. lexicographic trigger
//
// The sort is stable over input already in deterministic order, so repeated
// calls always agree.
func RankSnippets(snippets []snippet.Snippet, query string) {
	sort.SliceStable(snippets, func(i, j int) bool {
		a, b := &snippets[i], &snippets[j]
		aTrigger := strings.ToLower(a.Prefix)
		bTrigger := strings.ToLower(b.Prefix)

		aExact := aTrigger == query
		bExact := bTrigger == query
		if aExact != bExact {
			return aExact
		}

		aPrefix := strings.HasPrefix(aTrigger, query)
		bPrefix := strings.HasPrefix(bTrigger, query)
		if aPrefix != bPrefix {
			return aPrefix
		}

		if len(a.Prefix) != len(b.Prefix) {
			return len(a.Prefix) < len(b.Prefix)
		}

		aName := strings.Contains(strings.ToLower(a.Name), query)
		bName := strings.Contains(strings.ToLower(b.Name), query)
		if aName != bName {
			return aName
		}

		return aTrigger < bTrigger
	})
}
