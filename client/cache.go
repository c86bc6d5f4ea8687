package chatclient

import (
	"sort"
	"sync"
	"time"
)

// ThreadEntry is one row of the cached thread listing.
type ThreadEntry struct {
	ID        string
	Title     string
	UpdatedAt time.Time
}

// ThreadListCache is an explicit cache of the thread listing, keyed by thread
// id. The stream consumer updates it on thread-created and title-updated
// events; views read snapshots. All invalidation is explicit, there is no
// ambient refresh.
type ThreadListCache struct {
	mu      sync.RWMutex
	entries map[string]ThreadEntry
	valid   bool
}

// NewThreadListCache builds an empty, invalid cache.
func NewThreadListCache() *ThreadListCache {
	return &ThreadListCache{entries: make(map[string]ThreadEntry)}
}

// Fill replaces the cache content from a server listing and marks it valid.
func (c *ThreadListCache) Fill(entries []ThreadEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]ThreadEntry, len(entries))
	for _, e := range entries {
		c.entries[e.ID] = e
	}
	c.valid = true
}

// Upsert inserts or replaces one entry.
func (c *ThreadListCache) Upsert(e ThreadEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.ID] = e
}

// SetTitle updates a cached title, last write wins. Unknown ids are ignored.
func (c *ThreadListCache) SetTitle(threadID, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[threadID]
	if !ok {
		return
	}
	e.Title = title
	c.entries[threadID] = e
}

// Remove drops one entry, e.g. after thread deletion.
func (c *ThreadListCache) Remove(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, threadID)
}

// Invalidate marks the cache stale; the next reader should refetch and Fill.
func (c *ThreadListCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.valid = false
}

// Valid reports whether the cache holds a complete listing.
func (c *ThreadListCache) Valid() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.valid
}

// Get returns one entry.
func (c *ThreadListCache) Get(threadID string) (ThreadEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[threadID]
	return e, ok
}

// Snapshot returns the cached listing, most recently updated first.
func (c *ThreadListCache) Snapshot() []ThreadEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ThreadEntry, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
