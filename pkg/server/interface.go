/*
Package server implements JSON IPC for snippet completion services.

The server package provides a line-delimited interface for snippet search
over stdin/stdout, backed by an in-memory trie index and a SQLite store.

# IPC

The server operates on a request response model where clients send structured
messages via stdin and receive responses through stdout, one JSON object per
line. Each message carries an "action" field plus the parameters that action
needs.

Search requests look like:

	{"action": "search", "query": "yap", "language": "typescript", "limit": 10}

Short queries walk the trie; the "fuzzy" flag switches to edit-distance
matching for typo recovery. Longer queries go through the store's substring
path. The server responds with ranked snippets and timing data:

	{"success": true, "results": [...], "count": 2, "search_time_ms": 1, "method": "trie"}

Corpus requests fetch snippets ordered for a user when a user_id is present,
or by global popularity otherwise:

	{"action": "snippets", "user_id": "f3c1...", "language": "typescript"}

Usage events feed the personalization layer:

	{"action": "usage", "metric": {"snippet_id": 3, "user_id": "f3c1...", "was_accepted": true}}

Errors come back as {"success": false, "error": "..."} with a status code.
Mutating actions (create, update, delete) rebuild the index before replying,
so a subsequent search always sees the change.
*/
package server

import "github.com/sneap/snipserve/pkg/snippet"

// Request is an incoming IPC message. Fields beyond Action are read
// per-action; unused ones stay zero.
type Request struct {
	Action    string               `json:"action"`
	Query     string               `json:"query,omitempty"`
	Language  string               `json:"language,omitempty"`
	Limit     int                  `json:"limit,omitempty"`
	Fuzzy     bool                 `json:"fuzzy,omitempty"`
	UserID    string               `json:"user_id,omitempty"`
	SnippetID int64                `json:"snippet_id,omitempty"`
	Snippet   *snippet.Snippet     `json:"snippet,omitempty"`
	Metric    *snippet.UsageMetric `json:"metric,omitempty"`
}

// Meta carries timing and method info alongside search results.
type Meta struct {
	SearchTimeMs int64  `json:"search_time_ms"`
	Count        int    `json:"count"`
	Method       string `json:"method"`
}

// SearchResponse is the reply for search actions.
type SearchResponse struct {
	Success bool              `json:"success"`
	Results []snippet.Snippet `json:"results"`
	Meta
}

// SnippetsResponse is the reply for corpus fetches.
type SnippetsResponse struct {
	Success      bool              `json:"success"`
	Snippets     []snippet.Snippet `json:"snippets"`
	Count        int               `json:"count"`
	Personalized bool              `json:"personalized"`
}

// SnippetResponse is the reply for single-snippet mutations.
type SnippetResponse struct {
	Success bool             `json:"success"`
	Snippet *snippet.Snippet `json:"snippet,omitempty"`
}

// StatsResponse reports index shape and stored corpus size.
type StatsResponse struct {
	Success          bool    `json:"success"`
	NodeCount        int     `json:"node_count"`
	SnippetCount     int     `json:"snippet_count"`
	StoredSnippets   int64   `json:"stored_snippets"`
	AvgTerminalDepth float64 `json:"avg_terminal_depth"`
}

// ErrorResponse represents an IPC error.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// StatusResponse is used for ready/health acknowledgements.
type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}
