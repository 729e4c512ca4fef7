package cache

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
)

// diskTier is the persistent cache tier: the whole key space held in one
// msgpack file, rewritten after each mutation. Entries past the TTL are
// invisible to readers but stay on disk until capacity pressure removes
// them; eviction always takes the globally-oldest entry by insert time.
//
// Every error here is logged and swallowed. The tier is an optimization,
// never a dependency of the search path.
type diskTier struct {
	mu      sync.Mutex
	path    string
	limit   int
	entries map[string]Entry
}

func newDiskTier(path string, limit int) *diskTier {
	d := &diskTier{
		path:    path,
		limit:   limit,
		entries: make(map[string]Entry),
	}
	d.load()
	return d
}

func (d *diskTier) get(key string, now time.Time, ttl time.Duration) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok || now.Sub(e.StoredAt) >= ttl {
		return Entry{}, false
	}
	return e, true
}

func (d *diskTier) put(key string, e Entry) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.entries[key]; !exists && len(d.entries) >= d.limit {
		d.evictOldestLocked()
	}
	d.entries[key] = e
	d.saveLocked()
}

// bump increments the stored access counter so warm-start ordering tracks
// real usage across restarts.
func (d *diskTier) bump(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[key]
	if !ok {
		return
	}
	e.AccessCount++
	d.entries[key] = e
	d.saveLocked()
}

func (d *diskTier) clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = make(map[string]Entry)
	d.saveLocked()
}

func (d *diskTier) size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// hottest returns up to n entries ordered by access count descending.
func (d *diskTier) hottest(n int) map[string]Entry {
	d.mu.Lock()
	defer d.mu.Unlock()

	type kv struct {
		key string
		e   Entry
	}
	all := make([]kv, 0, len(d.entries))
	for k, e := range d.entries {
		all = append(all, kv{k, e})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].e.AccessCount != all[j].e.AccessCount {
			return all[i].e.AccessCount > all[j].e.AccessCount
		}
		return all[i].key < all[j].key
	})
	if len(all) > n {
		all = all[:n]
	}

	hot := make(map[string]Entry, len(all))
	for _, item := range all {
		hot[item.key] = item.e
	}
	return hot
}

func (d *diskTier) evictOldestLocked() {
	var oldest string
	var oldestAt time.Time
	first := true
	for key, e := range d.entries {
		if first || e.StoredAt.Before(oldestAt) {
			oldest = key
			oldestAt = e.StoredAt
			first = false
		}
	}
	if oldest != "" {
		delete(d.entries, oldest)
	}
}

func (d *diskTier) load() {
	if d.path == "" {
		return
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("loading cache file %s: %v", d.path, err)
		}
		return
	}
	if err := msgpack.Unmarshal(data, &d.entries); err != nil {
		log.Warnf("decoding cache file %s: %v", d.path, err)
		d.entries = make(map[string]Entry)
	}
}

// saveLocked rewrites the cache file via temp+rename. Caller holds d.mu.
func (d *diskTier) saveLocked() {
	if d.path == "" {
		return
	}
	data, err := msgpack.Marshal(d.entries)
	if err != nil {
		log.Errorf("encoding cache file: %v", err)
		return
	}
	tmp := d.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(d.path), 0755); err != nil {
		log.Errorf("creating cache dir: %v", err)
		return
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Errorf("writing cache file: %v", err)
		return
	}
	if err := os.Rename(tmp, d.path); err != nil {
		log.Errorf("replacing cache file: %v", err)
	}
}
