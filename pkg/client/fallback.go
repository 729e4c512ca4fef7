package client

import (
	"strings"

	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/sneap/snipserve/pkg/index"
	"github.com/sneap/snipserve/pkg/snippet"
)

// localIndex is the offline heuristic behind the fallback path: a patricia
// trie over lowercased trigger text, plus a linear name scan for queries the
// trie misses. Rebuilt wholesale on every snapshot refresh, never mutated.
type localIndex struct {
	trie     *patricia.Trie
	snippets []snippet.Snippet
}

func newLocalIndex(snaps []snippet.Snippet) *localIndex {
	trie := patricia.NewTrie()
	for i := range snaps {
		trie.Insert(patricia.Prefix(strings.ToLower(snaps[i].Prefix)), i)
	}
	return &localIndex{trie: trie, snippets: snaps}
}

// filter returns up to limit snapshot snippets matching the lowercased
// query by trigger prefix or name substring, scoped to language and ranked
// with the server's ordering.
func (li *localIndex) filter(lowerQuery, language string, limit int) []snippet.Snippet {
	seen := make(map[int]struct{})
	var matches []snippet.Snippet

	err := li.trie.VisitSubtree(patricia.Prefix(lowerQuery), func(p patricia.Prefix, item patricia.Item) error {
		i := item.(int)
		if _, dup := seen[i]; dup {
			return nil
		}
		seen[i] = struct{}{}
		matches = append(matches, li.snippets[i])
		return nil
	})
	if err != nil {
		return nil
	}

	for i := range li.snippets {
		if _, dup := seen[i]; dup {
			continue
		}
		if strings.Contains(strings.ToLower(li.snippets[i].Name), lowerQuery) {
			seen[i] = struct{}{}
			matches = append(matches, li.snippets[i])
		}
	}

	filtered := matches[:0]
	for _, s := range matches {
		if s.MatchesLanguage(language) {
			filtered = append(filtered, s)
		}
	}

	index.RankSnippets(filtered, lowerQuery)
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}
