/*
Package cache implements the client-side two-tier result cache that fronts
the search pipeline: a small in-memory hot tier evicted by access count and
a larger persistent warm tier evicted by age, both sharing the same entry
shape and TTL.

Reads check memory first and promote warm hits. Writes land in memory
synchronously and trickle to disk in the background; a disk failure is
logged and never fails the search that triggered it.
*/
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/sneap/snipserve/pkg/snippet"
)

// Defaults mirror the limits the editor extension shipped with.
const (
	DefaultMemoryLimit  = 100
	DefaultStorageLimit = 5000
	DefaultTTL          = 5 * time.Minute
)

// Entry is one cached result list. The same shape lives in both tiers.
type Entry struct {
	Snippets    []snippet.Snippet `msgpack:"s"`
	Language    string            `msgpack:"l,omitempty"`
	StoredAt    time.Time         `msgpack:"t"`
	AccessCount int               `msgpack:"a"`
}

// Options bound the two tiers. Zero values fall back to the defaults.
type Options struct {
	MemoryLimit  int
	StorageLimit int
	TTL          time.Duration
	Path         string // persistent tier file
}

// Tiered is the two-tier cache. All memory-tier mutation happens under one
// mutex so eviction-then-insert is a single atomic step.
type Tiered struct {
	mu     sync.Mutex
	memory map[string]*Entry

	disk *diskTier
	opts Options
	now  func() time.Time

	writes sync.WaitGroup
}

// New builds a cache and warm-starts the memory tier from the persistent
// file: the historically most-accessed half of the memory budget is
// preloaded so popular queries skip the network after a restart.
func New(opts Options) *Tiered {
	if opts.MemoryLimit <= 0 {
		opts.MemoryLimit = DefaultMemoryLimit
	}
	if opts.StorageLimit <= 0 {
		opts.StorageLimit = DefaultStorageLimit
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}

	c := &Tiered{
		memory: make(map[string]*Entry, opts.MemoryLimit),
		disk:   newDiskTier(opts.Path, opts.StorageLimit),
		opts:   opts,
		now:    time.Now,
	}
	c.warmStart()
	return c
}

// SetClock overrides the time source. Test hook.
func (c *Tiered) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Key builds the composite cache key from query, language tag and the
// optional explicit prefix.
func Key(query, language, prefix string) string {
	return strings.Join([]string{query, language, prefix}, "\x1f")
}

// Get returns the cached results for key, or (nil, false) when the caller
// must run a live search. Memory hits and promoted warm hits both bump the
// entry's access counter.
func (c *Tiered) Get(key string) ([]snippet.Snippet, bool) {
	c.mu.Lock()

	if e, ok := c.memory[key]; ok && c.fresh(e) {
		e.AccessCount++
		snips := e.Snippets
		c.mu.Unlock()
		return snips, true
	}

	now := c.now()
	c.mu.Unlock()

	e, ok := c.disk.get(key, now, c.opts.TTL)
	if !ok {
		return nil, false
	}

	// Promote into memory, subject to the memory tier's own eviction.
	e.AccessCount++
	c.mu.Lock()
	c.insertLocked(key, &e)
	c.mu.Unlock()

	c.asyncWrite(func() { c.disk.bump(key) })
	return e.Snippets, true
}

// Set caches results under key: synchronously in memory, asynchronously in
// the persistent tier.
func (c *Tiered) Set(key string, results []snippet.Snippet, language string) {
	c.mu.Lock()
	// c.now is guarded by c.mu; read it under the same lock SetClock
	// writes it under.
	e := &Entry{
		Snippets:    results,
		Language:    language,
		StoredAt:    c.now(),
		AccessCount: 1,
	}
	c.insertLocked(key, e)
	c.mu.Unlock()

	stored := *e
	c.asyncWrite(func() { c.disk.put(key, stored) })
}

// Clear drops both tiers.
func (c *Tiered) Clear() {
	c.mu.Lock()
	c.memory = make(map[string]*Entry, c.opts.MemoryLimit)
	c.mu.Unlock()
	c.disk.clear()
}

// Flush blocks until all pending persistent-tier writes have settled.
// Shutdown and test hook; the search path never calls it.
func (c *Tiered) Flush() {
	c.writes.Wait()
}

// Stats reports tier occupancy.
func (c *Tiered) Stats() map[string]int {
	c.mu.Lock()
	memSize := len(c.memory)
	c.mu.Unlock()
	return map[string]int{
		"memoryEntries":  memSize,
		"memoryLimit":    c.opts.MemoryLimit,
		"storageEntries": c.disk.size(),
		"storageLimit":   c.opts.StorageLimit,
	}
}

func (c *Tiered) fresh(e *Entry) bool {
	return c.now().Sub(e.StoredAt) < c.opts.TTL
}

// insertLocked adds an entry, first making room by dropping the entry with
// the lowest access count. Caller holds c.mu.
func (c *Tiered) insertLocked(key string, e *Entry) {
	if _, exists := c.memory[key]; !exists && len(c.memory) >= c.opts.MemoryLimit {
		c.evictColdestLocked()
	}
	c.memory[key] = e
}

func (c *Tiered) evictColdestLocked() {
	var coldest string
	min := int(^uint(0) >> 1)
	for key, e := range c.memory {
		if e.AccessCount < min {
			min = e.AccessCount
			coldest = key
		}
	}
	if coldest != "" {
		delete(c.memory, coldest)
		log.Debugf("evicted %q from memory cache", coldest)
	}
}

func (c *Tiered) asyncWrite(fn func()) {
	c.writes.Add(1)
	go func() {
		defer c.writes.Done()
		fn()
	}()
}

// warmStart loads the persistent tier and preloads the most-accessed
// entries into memory, up to half the memory budget.
func (c *Tiered) warmStart() {
	hot := c.disk.hottest(c.opts.MemoryLimit / 2)
	for key, e := range hot {
		entry := e
		c.memory[key] = &entry
	}
	if len(hot) > 0 {
		log.Debugf("warm-started memory cache with %d entries", len(hot))
	}
}
