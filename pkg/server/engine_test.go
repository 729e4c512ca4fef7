package server

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneap/snipserve/pkg/config"
	"github.com/sneap/snipserve/pkg/snippet"
	"github.com/sneap/snipserve/pkg/store"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	e := NewEngine(st, config.DefaultConfig())
	require.NoError(t, e.Init(context.Background()))
	return e
}

func TestInitSeedsAndIndexes(t *testing.T) {
	e := newTestEngine(t)

	stats, stored, err := e.Stats(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, stats.SnippetCount, "fresh engine is seeded")
	assert.Greater(t, stats.NodeCount, 1)
	assert.Equal(t, int64(stats.SnippetCount), stored, "index matches the store")

	// The starter corpus answers the canonical one-letter query.
	results, meta, err := e.PrefixSearch("y", "", 64, false)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
	assert.Equal(t, "trie", meta.Method)
	assert.Equal(t, len(results), meta.Count)
}

func TestPrefixSearchValidation(t *testing.T) {
	e := newTestEngine(t)

	_, _, err := e.PrefixSearch("", "", 10, false)
	assert.ErrorIs(t, err, ErrEmptyPrefix)

	_, _, err = e.PrefixSearch(strings.Repeat("y", 61), "", 10, false)
	assert.ErrorIs(t, err, ErrPrefixTooLong)
}

func TestPrefixSearchClampsLimit(t *testing.T) {
	e := newTestEngine(t)

	results, _, err := e.PrefixSearch("y", "", 10_000, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), config.DefaultConfig().Server.MaxLimit)

	results, _, err = e.PrefixSearch("y", "", -1, false)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 10, "non-positive limit falls back to the default")
}

func TestFuzzySearchMethod(t *testing.T) {
	e := newTestEngine(t)

	results, meta, err := e.PrefixSearch("yaip", "", 10, true)
	require.NoError(t, err)
	assert.Equal(t, "fuzzy", meta.Method)
	require.NotEmpty(t, results, "transposed trigger recovered by edit distance")
	assert.Equal(t, "yapi", results[0].Prefix)
}

func TestFullTextSearch(t *testing.T) {
	e := newTestEngine(t)

	results, meta, err := e.FullTextSearch(context.Background(), "fetch", "", 10)
	require.NoError(t, err)
	assert.Equal(t, "full-text", meta.Method)
	assert.NotEmpty(t, results)
}

func TestCreateIsSearchableImmediately(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateSnippet(ctx, snippet.Snippet{
		Name:   "Custom Macro",
		Prefix: "zmacro",
		Body:   []string{"macro body"},
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	results, _, err := e.PrefixSearch("zma", "", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "zmacro", results[0].Prefix)
}

func TestUpdateReindexes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateSnippet(ctx, snippet.Snippet{
		Name: "Macro", Prefix: "zmacro", Body: []string{"a"},
	})
	require.NoError(t, err)

	created.Prefix = "zrenamed"
	ok, err := e.UpdateSnippet(ctx, created)
	require.NoError(t, err)
	require.True(t, ok)

	results, _, err := e.PrefixSearch("zmacro", "", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results, "old trigger gone after update")

	results, _, err = e.PrefixSearch("zren", "", 10, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "zrenamed", results[0].Prefix)
}

func TestDeleteReindexes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	created, err := e.CreateSnippet(ctx, snippet.Snippet{
		Name: "Macro", Prefix: "zmacro", Body: []string{"a"},
	})
	require.NoError(t, err)

	ok, err := e.DeleteSnippet(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	results, _, err := e.PrefixSearch("zmacro", "", 10, false)
	require.NoError(t, err)
	assert.Empty(t, results)

	ok, err = e.DeleteSnippet(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok, "deleting a missing id reports false")
}

func TestSnippetsPersonalizedFlag(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, personalized, err := e.Snippets(ctx, "", "", 10)
	require.NoError(t, err)
	assert.False(t, personalized, "anonymous fetch uses the popular ordering")

	_, personalized, err = e.Snippets(ctx, "some-user", "", 10)
	require.NoError(t, err)
	assert.True(t, personalized)
}

func TestRecordUsageFlowsIntoOrdering(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	all, _, err := e.Snippets(ctx, "", "", 100)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	target := all[len(all)-1]

	for i := 0; i < 5; i++ {
		require.NoError(t, e.RecordUsage(ctx, snippet.UsageMetric{
			SnippetID: target.ID, UserID: "me", Language: "typescript", WasAccepted: true,
		}))
	}

	ordered, _, err := e.Snippets(ctx, "me", "", 100)
	require.NoError(t, err)
	assert.Equal(t, target.ID, ordered[0].ID, "accepted usage promotes the snippet for its user")

	stats, err := e.UserStats(ctx, "me")
	require.NoError(t, err)
	assert.EqualValues(t, 5, stats.TotalUsage)

	analytics, err := e.SnippetAnalytics(ctx, target.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, analytics.TotalUsage)
	assert.InDelta(t, 1.0, analytics.AcceptanceRate, 0.001)
}

func TestCategories(t *testing.T) {
	e := newTestEngine(t)

	cats, err := e.Categories(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, cats, "seed corpus spans categories")
}
