/*
Package index implements the in-memory search side of snipserve: a
character-level trie over snippet trigger text, name words and description
words, a deterministic multi-criterion ranker, and a Levenshtein fuzzy
fallback.

The trie is an arena of nodes addressed by index. Every node on the path of
an inserted term records the ids of all snippets reachable through it, so a
prefix walk lands directly on the full candidate set with no subtree
traversal. Ranking happens after collection because the order depends on
criteria (exact-match bonus, name containment) the walk alone cannot see.
*/
package index

import (
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/sneap/snipserve/pkg/snippet"
)

// stopwords are description words too common to index.
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"from": {}, "as": {}, "is": {}, "was": {}, "are": {}, "been": {}, "be": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {},
	"might": {}, "must": {}, "can": {}, "this": {}, "that": {}, "these": {},
	"those": {}, "it": {}, "its": {}, "if": {}, "then": {}, "else": {},
	"when": {}, "where": {}, "which": {},
}

const (
	minNameWordLen = 3
	minDescWordLen = 4
)

// node is one trie arena entry. children maps a character to another arena
// index; ids holds every snippet whose indexed term passes through here.
type node struct {
	children map[rune]int32
	ids      map[int64]struct{}
	terminal bool
}

// Stats describes the trie shape; computed by a full traversal, so keep it
// off the search path.
type Stats struct {
	NodeCount        int     `json:"nodeCount"`
	SnippetCount     int     `json:"snippetCount"`
	AvgTerminalDepth float64 `json:"avgTerminalDepth"`
}

// Trie indexes a read-mostly snapshot of the snippet corpus. Inserts are
// serialized against concurrent searches; there is no incremental delete,
// callers rebuild from a fresh snapshot instead.
type Trie struct {
	mu       sync.RWMutex
	nodes    []node
	snippets map[int64]*snippet.Snippet
}

// NewTrie returns an empty trie with just the root node allocated.
func NewTrie() *Trie {
	t := &Trie{snippets: make(map[int64]*snippet.Snippet)}
	t.nodes = append(t.nodes, newNode())
	return t
}

func newNode() node {
	return node{
		children: make(map[rune]int32),
		ids:      make(map[int64]struct{}),
	}
}

// Insert indexes a snippet under its derived terms: the lowercased trigger,
// name words longer than 2 chars and description words longer than 3 chars
// that are not stopwords. Re-inserting the same id is harmless.
func (t *Trie) Insert(s *snippet.Snippet, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.snippets[id] = s

	for _, term := range IndexedTerms(s) {
		t.insertTerm(term, id)
	}
}

// IndexedTerms derives the words a snippet is indexed under.
func IndexedTerms(s *snippet.Snippet) []string {
	terms := []string{strings.ToLower(s.Prefix)}

	for _, word := range strings.Fields(strings.ToLower(s.Name)) {
		if utf8.RuneCountInString(word) >= minNameWordLen {
			terms = append(terms, word)
		}
	}
	for _, word := range strings.Fields(strings.ToLower(s.Description)) {
		if utf8.RuneCountInString(word) < minDescWordLen {
			continue
		}
		if _, common := stopwords[word]; common {
			continue
		}
		terms = append(terms, word)
	}
	return terms
}

func (t *Trie) insertTerm(term string, id int64) {
	cur := int32(0)
	for _, r := range term {
		next, ok := t.nodes[cur].children[r]
		if !ok {
			next = int32(len(t.nodes))
			t.nodes = append(t.nodes, newNode())
			t.nodes[cur].children[r] = next
		}
		cur = next
		t.nodes[cur].ids[id] = struct{}{}
	}
	t.nodes[cur].terminal = true
}

// Search walks the lowercased prefix one character at a time and returns the
// ranked snippets reachable from the landing node, filtered by language and
// truncated to limit. A broken path returns an empty result; that is the
// expected "nothing indexed here" outcome, not an error.
func (t *Trie) Search(prefix string, limit int, language string) []snippet.Snippet {
	t.mu.RLock()
	defer t.mu.RUnlock()

	lower := strings.ToLower(prefix)
	cur := int32(0)
	for _, r := range lower {
		next, ok := t.nodes[cur].children[r]
		if !ok {
			return nil
		}
		cur = next
	}

	candidates := t.resolve(t.nodes[cur].ids, language)
	RankSnippets(candidates, lower)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

// resolve maps an id set to snippet values in deterministic (id) order so
// the ranker's stable sort never leaks map iteration order.
func (t *Trie) resolve(ids map[int64]struct{}, language string) []snippet.Snippet {
	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	results := make([]snippet.Snippet, 0, len(sorted))
	for _, id := range sorted {
		s, ok := t.snippets[id]
		if !ok {
			log.Warnf("trie references unknown snippet id %d", id)
			continue
		}
		if !s.MatchesLanguage(language) {
			continue
		}
		results = append(results, *s)
	}
	return results
}

// CandidateIDs returns the raw id set at the prefix's landing node, before
// language filtering, ranking or truncation.
func (t *Trie) CandidateIDs(prefix string) []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cur := int32(0)
	for _, r := range strings.ToLower(prefix) {
		next, ok := t.nodes[cur].children[r]
		if !ok {
			return nil
		}
		cur = next
	}
	ids := make([]int64, 0, len(t.nodes[cur].ids))
	for id := range t.nodes[cur].ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Rebuild replaces the whole index with a fresh corpus snapshot. Updates and
// deletes go through here; only creation is additive.
func (t *Trie) Rebuild(snippets []snippet.Snippet) {
	fresh := NewTrie()
	for i := range snippets {
		s := snippets[i]
		fresh.Insert(&s, s.ID)
	}

	t.mu.Lock()
	t.nodes = fresh.nodes
	t.snippets = fresh.snippets
	t.mu.Unlock()
}

// Len reports the number of snippets in the current snapshot.
func (t *Trie) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.snippets)
}

// Stats walks the whole arena. O(nodes) and only meant for observability.
func (t *Trie) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var terminals, depthSum int

	type frame struct {
		idx   int32
		depth int
	}
	stack := []frame{{0, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &t.nodes[f.idx]
		if n.terminal {
			terminals++
			depthSum += f.depth
		}
		for _, child := range n.children {
			stack = append(stack, frame{child, f.depth + 1})
		}
	}

	stats := Stats{
		NodeCount:    len(t.nodes),
		SnippetCount: len(t.snippets),
	}
	if terminals > 0 {
		stats.AvgTerminalDepth = float64(depthSum) / float64(terminals)
	}
	return stats
}
