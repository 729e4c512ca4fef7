/*
Package client implements the editor-facing search service: a debounced,
deadline-bounded front end over a snipserve backend, a two-tier result
cache, and an offline fallback over the last-known snippet snapshot so
completion keeps answering when the server does not.
*/
package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/sneap/snipserve/internal/logger"
	"github.com/sneap/snipserve/pkg/cache"
	"github.com/sneap/snipserve/pkg/config"
	"github.com/sneap/snipserve/pkg/snippet"
)

// ErrEmptyQuery rejects searches with no query text before any network
// call is attempted.
var ErrEmptyQuery = errors.New("query must be at least 1 character")

const (
	// DefaultDebounce coalesces keystrokes before a network search fires.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultTimeout bounds one network search, independent of the debounce.
	DefaultTimeout = time.Second
	// DefaultLimit is the result count requested per search.
	DefaultLimit = 15
	// DefaultRefreshAttempts bounds the corpus refresh retry loop.
	DefaultRefreshAttempts = 3
	// fallbackLimit caps results served from the local snapshot.
	fallbackLimit = 10
	// prefixQueryMax routes short queries to the trie-backed prefix search;
	// anything longer goes to full-text.
	prefixQueryMax = 3

	searchKey = "search"
)

// SearchMeta mirrors the per-search metadata the backend reports.
type SearchMeta struct {
	SearchTimeMs int64  `json:"searchTimeMs"`
	Count        int    `json:"count"`
	Method       string `json:"method"`
}

// Backend is the remote half of the pipeline. Transport framing is the
// caller's concern; the client only needs these shapes.
type Backend interface {
	SearchPrefix(ctx context.Context, prefix, language string, limit int, fuzzy bool) ([]snippet.Snippet, SearchMeta, error)
	SearchFullText(ctx context.Context, query, language string, limit int) ([]snippet.Snippet, SearchMeta, error)
	FetchSnippets(ctx context.Context, userID, language string, limit int) ([]snippet.Snippet, bool, error)
	TrackUsage(ctx context.Context, m snippet.UsageMetric) error
}

// Options configure a Searcher. Zero values use the defaults above.
type Options struct {
	UserID          string
	Debounce        time.Duration
	Timeout         time.Duration
	Limit           int
	RefreshAttempts int
	Cache           *cache.Tiered

	// NewTimer and Sleep are test seams for the debounce and retry paths.
	NewTimer TimerFactory
	Sleep    func(time.Duration)
}

// OptionsFromConfig maps the search and cache config sections onto client
// options. cachePath names the persistent cache file; empty keeps the
// cache memory-only.
func OptionsFromConfig(cfg *config.Config, cachePath string) Options {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return Options{
		Debounce:        time.Duration(cfg.Search.DebounceMs) * time.Millisecond,
		Timeout:         time.Duration(cfg.Search.TimeoutMs) * time.Millisecond,
		RefreshAttempts: cfg.Search.RefreshAttempts,
		Cache: cache.New(cache.Options{
			MemoryLimit:  cfg.Cache.MemoryLimit,
			StorageLimit: cfg.Cache.StorageLimit,
			TTL:          cfg.Cache.TTL(),
			Path:         cachePath,
		}),
	}
}

// Searcher fronts a Backend with debouncing, caching and local fallback.
type Searcher struct {
	backend         Backend
	cache           *cache.Tiered
	debounce        *Debouncer
	timeout         time.Duration
	limit           int
	refreshAttempts int
	userID          string
	sleep           func(time.Duration)
	logger          *log.Logger

	mu       sync.RWMutex
	snapshot []snippet.Snippet
	local    *localIndex
}

// New builds a Searcher. A missing UserID gets a generated install id, the
// same role the editor extension's installation id played.
func New(backend Backend, opts Options, lg *log.Logger) *Searcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.RefreshAttempts <= 0 {
		opts.RefreshAttempts = DefaultRefreshAttempts
	}
	if opts.UserID == "" {
		opts.UserID = uuid.NewString()
	}
	if opts.Cache == nil {
		opts.Cache = cache.New(cache.Options{})
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if lg == nil {
		lg = logger.New("client")
	}

	return &Searcher{
		backend:         backend,
		cache:           opts.Cache,
		debounce:        NewDebouncer(opts.Debounce, opts.NewTimer),
		timeout:         opts.Timeout,
		limit:           opts.Limit,
		refreshAttempts: opts.RefreshAttempts,
		userID:          opts.UserID,
		sleep:           opts.Sleep,
		logger:          lg,
		local:           newLocalIndex(nil),
	}
}

// UserID returns the identity usage metrics are reported under.
func (s *Searcher) UserID() string { return s.userID }

// Search answers a completion query. The order of business: validate,
// consult the cache, serve trivial queries from the snapshot, then debounce
// a network search that falls back to the snapshot on timeout or failure.
// A call superseded inside the debounce window returns (nil, nil); callers
// must not assume every invocation produces a result.
func (s *Searcher) Search(ctx context.Context, query, language string) ([]snippet.Snippet, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	key := cache.Key(query, language, "")
	if results, ok := s.cache.Get(key); ok {
		return results, nil
	}

	// Very short queries never hit the network.
	if len(query) < 2 {
		return s.fallback(query, language), nil
	}

	done := s.debounce.Do(searchKey, func() []snippet.Snippet {
		return s.runSearch(query, language, key)
	})

	select {
	case results, ok := <-done:
		if !ok {
			return nil, nil
		}
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runSearch performs the network leg under its own deadline. Failures of
// any kind degrade to the local snapshot; the search path never retries.
func (s *Searcher) runSearch(query, language, key string) []snippet.Snippet {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var (
		results []snippet.Snippet
		meta    SearchMeta
		err     error
	)
	if len(query) <= prefixQueryMax {
		results, meta, err = s.backend.SearchPrefix(ctx, query, language, s.limit, false)
	} else {
		results, meta, err = s.backend.SearchFullText(ctx, query, language, s.limit)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.debounce.MarkTimedOut(searchKey)
		}
		s.logger.Warnf("search %q failed, serving local results: %v", query, err)
		return s.fallback(query, language)
	}

	s.logger.Debugf("search %q: %d results via %s in %dms", query, meta.Count, meta.Method, meta.SearchTimeMs)
	s.cache.Set(key, results, language)
	return results
}

// FuzzySearch asks the backend for edit-distance matches. Explicitly
// opt-in; it shares the fallback behavior but not the debounce window.
func (s *Searcher) FuzzySearch(ctx context.Context, query, language string) ([]snippet.Snippet, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results, _, err := s.backend.SearchPrefix(ctx, query, language, s.limit, true)
	if err != nil {
		s.logger.Warnf("fuzzy search %q failed, serving local results: %v", query, err)
		return s.fallback(query, language), nil
	}
	return results, nil
}

// TrackUsage reports a usage event without blocking the completion path.
// Failures are logged and dropped.
func (s *Searcher) TrackUsage(m snippet.UsageMetric) {
	m.UserID = s.userID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.backend.TrackUsage(ctx, m); err != nil {
			s.logger.Warnf("usage tracking for snippet %d failed: %v", m.SnippetID, err)
		}
	}()
}

// fallback filters the last-known snapshot by language and prefix/name
// match, ranked the same way the server ranks.
func (s *Searcher) fallback(query, language string) []snippet.Snippet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.local.filter(strings.ToLower(query), language, fallbackLimit)
}

// Snapshot returns the cached corpus the fallback path serves from.
func (s *Searcher) Snapshot() []snippet.Snippet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Searcher) setSnapshot(snaps []snippet.Snippet) {
	s.mu.Lock()
	s.snapshot = snaps
	s.local = newLocalIndex(snaps)
	s.mu.Unlock()
}
