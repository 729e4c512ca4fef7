package cache

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneap/snipserve/pkg/snippet"
)

func results(prefix string) []snippet.Snippet {
	return []snippet.Snippet{{ID: 1, Prefix: prefix, Name: "Test"}}
}

// fixedClock returns a controllable time source starting at a stable epoch.
func fixedClock() (func() time.Time, *time.Time) {
	at := time.Unix(1_700_000_000, 0)
	return func() time.Time { return at }, &at
}

func TestSetClockConcurrentWithSet(t *testing.T) {
	c := New(Options{MemoryLimit: 8})
	key := Key("yap", "go", "")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.Set(key, results("yapi"), "go")
		}
	}()
	go func() {
		defer wg.Done()
		now, _ := fixedClock()
		for i := 0; i < 200; i++ {
			c.SetClock(now)
		}
	}()
	wg.Wait()
	c.Flush()

	_, ok := c.Get(key)
	require.True(t, ok)
}

func TestSetGetRoundTrip(t *testing.T) {
	c := New(Options{})

	key := Key("yap", "typescript", "")
	c.Set(key, results("yapi"), "typescript")

	got, ok := c.Get(key)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "yapi", got[0].Prefix)

	_, ok = c.Get(Key("yap", "go", ""))
	assert.False(t, ok, "language is part of the key")

	c.Flush()
}

func TestTTLExpiry(t *testing.T) {
	c := New(Options{TTL: 5 * time.Minute})
	now, at := fixedClock()
	c.SetClock(now)

	key := Key("yap", "", "")
	c.Set(key, results("yapi"), "")

	_, ok := c.Get(key)
	require.True(t, ok)

	*at = at.Add(4 * time.Minute)
	_, ok = c.Get(key)
	assert.True(t, ok, "entry inside TTL still served")

	*at = at.Add(2 * time.Minute)
	_, ok = c.Get(key)
	assert.False(t, ok, "entry past TTL is a miss")

	c.Flush()
}

func TestMemoryEvictionBound(t *testing.T) {
	c := New(Options{MemoryLimit: 3})

	for i := 0; i < 10; i++ {
		c.Set(Key(fmt.Sprintf("q%d", i), "", ""), results("yapi"), "")
	}

	stats := c.Stats()
	assert.LessOrEqual(t, stats["memoryEntries"], 3, "memory tier never exceeds its limit")

	c.Flush()
}

func TestEvictionDropsColdestEntry(t *testing.T) {
	c := New(Options{MemoryLimit: 2})

	hot := Key("hot", "", "")
	cold := Key("cold", "", "")
	c.Set(hot, results("yapi"), "")
	c.Set(cold, results("yerr"), "")

	// Three reads make hot clearly warmer than cold.
	for i := 0; i < 3; i++ {
		_, ok := c.Get(hot)
		require.True(t, ok)
	}

	c.Set(Key("new", "", ""), results("yfetch"), "")
	c.Flush()

	_, ok := c.Get(hot)
	assert.True(t, ok, "frequently accessed entry survives eviction")
}

func TestPersistAndWarmStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")

	first := New(Options{Path: path, MemoryLimit: 10})
	hot := Key("hot", "", "")
	first.Set(hot, results("yapi"), "")
	first.Set(Key("cold", "", ""), results("yerr"), "")
	for i := 0; i < 3; i++ {
		_, ok := first.Get(hot)
		require.True(t, ok)
	}
	first.Flush()

	// A new instance over the same file sees the persisted entries without
	// any Set calls, and the hot one is already in memory.
	second := New(Options{Path: path, MemoryLimit: 10})
	got, ok := second.Get(hot)
	require.True(t, ok)
	assert.Equal(t, "yapi", got[0].Prefix)

	stats := second.Stats()
	assert.Greater(t, stats["memoryEntries"], 0, "warm start preloads memory")
	assert.Equal(t, 2, stats["storageEntries"])

	second.Flush()
}

func TestDiskPromotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")

	writer := New(Options{Path: path})
	key := Key("promote", "", "")
	hot := Key("hot", "", "")
	writer.Set(key, results("yapi"), "")
	writer.Set(hot, results("yerr"), "")
	for i := 0; i < 3; i++ {
		writer.Get(hot)
	}
	writer.Flush()

	// MemoryLimit 2 → warm start budget of 1, held by the hotter entry, so
	// "promote" starts disk-only and must be promoted on first read.
	reader := New(Options{Path: path, MemoryLimit: 2})
	got, ok := reader.Get(key)
	require.True(t, ok)
	assert.Equal(t, "yapi", got[0].Prefix)

	reader.Flush()
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	c := New(Options{Path: path})

	c.Set(Key("q", "", ""), results("yapi"), "")
	c.Flush()
	c.Clear()

	_, ok := c.Get(Key("q", "", ""))
	assert.False(t, ok)

	stats := c.Stats()
	assert.Zero(t, stats["memoryEntries"])
	assert.Zero(t, stats["storageEntries"])
}

func TestKeyComposition(t *testing.T) {
	assert.NotEqual(t, Key("a", "b", ""), Key("a", "", "b"), "fields never collide across positions")
	assert.NotEqual(t, Key("ab", "", ""), Key("a", "b", ""))
}

func TestDiskTierEvictsOldest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	d := newDiskTier(path, 2)

	base := time.Unix(1_700_000_000, 0)
	d.put("first", Entry{StoredAt: base})
	d.put("second", Entry{StoredAt: base.Add(time.Minute)})
	d.put("third", Entry{StoredAt: base.Add(2 * time.Minute)})

	assert.Equal(t, 2, d.size())
	_, ok := d.get("first", base.Add(2*time.Minute), time.Hour)
	assert.False(t, ok, "oldest entry evicted at capacity")
	_, ok = d.get("third", base.Add(2*time.Minute), time.Hour)
	assert.True(t, ok)
}
