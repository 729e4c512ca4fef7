package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/pkg/config"
	"github.com/sneap/snipserve/pkg/index"
	"github.com/sneap/snipserve/pkg/snippet"
	"github.com/sneap/snipserve/pkg/store"
)

// Typed validation errors; the IPC layer maps them to error envelopes.
var (
	ErrEmptyPrefix   = errors.New("prefix must be at least 1 character")
	ErrPrefixTooLong = errors.New("prefix exceeds maximum length")
)

// Engine wires the store and the trie into one request-serving unit. It is
// constructed once at startup and passed into every handler; there are no
// package-level singletons.
type Engine struct {
	store *store.Store
	trie  *index.Trie
	cfg   *config.Config
}

// NewEngine builds an engine over an open store.
func NewEngine(st *store.Store, cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Engine{
		store: st,
		trie:  index.NewTrie(),
		cfg:   cfg,
	}
}

// Init seeds an empty store and builds the trie from the full corpus.
func (e *Engine) Init(ctx context.Context) error {
	if err := e.store.Seed(ctx); err != nil {
		return fmt.Errorf("seed store: %w", err)
	}
	if err := e.Reindex(ctx); err != nil {
		return err
	}
	stats := e.trie.Stats()
	log.Debugf("indexed %d snippets across %d trie nodes", stats.SnippetCount, stats.NodeCount)
	return nil
}

// Reindex rebuilds the trie wholesale from the store snapshot.
func (e *Engine) Reindex(ctx context.Context) error {
	all, err := e.store.All(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	e.trie.Rebuild(all)
	return nil
}

// PrefixSearch runs the trie path, or the fuzzy fallback when asked.
// Returns the ranked results plus timing metadata.
func (e *Engine) PrefixSearch(prefix, language string, limit int, fuzzy bool) ([]snippet.Snippet, Meta, error) {
	if prefix == "" || len(prefix) < e.cfg.Server.MinPrefix {
		return nil, Meta{}, ErrEmptyPrefix
	}
	if len(prefix) > e.cfg.Server.MaxPrefix {
		return nil, Meta{}, ErrPrefixTooLong
	}
	limit = e.clampLimit(limit)

	start := time.Now()
	var results []snippet.Snippet
	method := "trie"
	if fuzzy {
		method = "fuzzy"
		results = e.trie.FuzzySearch(prefix, e.cfg.Search.FuzzyMaxDistance, limit)
	} else {
		results = e.trie.Search(prefix, limit, language)
	}

	return results, Meta{
		SearchTimeMs: time.Since(start).Milliseconds(),
		Count:        len(results),
		Method:       method,
	}, nil
}

// FullTextSearch runs the store's substring path for longer queries.
func (e *Engine) FullTextSearch(ctx context.Context, query, language string, limit int) ([]snippet.Snippet, Meta, error) {
	limit = e.clampLimit(limit)

	start := time.Now()
	results, err := e.store.Search(ctx, query, language, limit)
	if err != nil {
		return nil, Meta{}, err
	}
	return results, Meta{
		SearchTimeMs: time.Since(start).Milliseconds(),
		Count:        len(results),
		Method:       "full-text",
	}, nil
}

// Snippets fetches the corpus ordered for a user: their own habit first
// when a userID is present, global popularity otherwise. The two orderings
// are distinct store operations; this is the one call site allowed to
// choose between them, and it reports which one it chose.
func (e *Engine) Snippets(ctx context.Context, userID, language string, limit int) ([]snippet.Snippet, bool, error) {
	limit = e.clampLimit(limit)
	if userID != "" {
		results, err := e.store.Personalized(ctx, userID, language, limit)
		return results, true, err
	}
	results, err := e.store.Popular(ctx, language, limit)
	return results, false, err
}

// RecordUsage appends a usage event. The global counter moves only for
// accepted completions; the trie needs no update either way.
func (e *Engine) RecordUsage(ctx context.Context, m snippet.UsageMetric) error {
	return e.store.RecordUsage(ctx, m)
}

// CreateSnippet stores a new snippet and indexes it immediately. Creation
// is the one additive mutation; it never needs a rebuild.
func (e *Engine) CreateSnippet(ctx context.Context, snip snippet.Snippet) (snippet.Snippet, error) {
	created, err := e.store.Create(ctx, snip)
	if err != nil {
		return snippet.Snippet{}, err
	}
	e.trie.Insert(&created, created.ID)
	return created, nil
}

// UpdateSnippet rewrites a snippet and rebuilds the index, since the trie
// has no incremental delete.
func (e *Engine) UpdateSnippet(ctx context.Context, snip snippet.Snippet) (bool, error) {
	ok, err := e.store.Update(ctx, snip)
	if err != nil || !ok {
		return ok, err
	}
	return true, e.Reindex(ctx)
}

// DeleteSnippet removes a snippet and rebuilds the index.
func (e *Engine) DeleteSnippet(ctx context.Context, id int64) (bool, error) {
	ok, err := e.store.Delete(ctx, id)
	if err != nil || !ok {
		return ok, err
	}
	return true, e.Reindex(ctx)
}

// UserStats exposes per-user aggregates.
func (e *Engine) UserStats(ctx context.Context, userID string) (snippet.UserStats, error) {
	return e.store.UserStats(ctx, userID)
}

// SnippetAnalytics exposes per-snippet aggregates.
func (e *Engine) SnippetAnalytics(ctx context.Context, id int64) (snippet.Analytics, error) {
	return e.store.SnippetAnalytics(ctx, id)
}

// Categories lists the known category labels.
func (e *Engine) Categories(ctx context.Context) ([]string, error) {
	return e.store.Categories(ctx)
}

// Stats reports trie shape alongside the store's own corpus count, so a
// drifted index is visible next to the source of truth.
func (e *Engine) Stats(ctx context.Context) (index.Stats, int64, error) {
	stats := e.trie.Stats()
	stored, err := e.store.Count(ctx)
	if err != nil {
		return stats, 0, err
	}
	return stats, stored, nil
}

func (e *Engine) clampLimit(limit int) int {
	if limit < 1 {
		return 10
	}
	if limit > e.cfg.Server.MaxLimit {
		return e.cfg.Server.MaxLimit
	}
	return limit
}
