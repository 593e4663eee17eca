package tutoring

import "sync"

const dedupCacheCapacity = 100

// dedupCache is a bounded set of already-seen message ids. Eviction is
// strictly insertion-ordered: ids are never refreshed on lookup, so this
// is a leak-prevention bound rather than an LRU.
type dedupCache struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newDedupCache(capacity int) *dedupCache {
	return &dedupCache{
		capacity: capacity,
		seen:     make(map[string]struct{}, capacity),
	}
}

// CheckAndRecord reports whether id is new and records it as seen in one
// step. When the cache grows past capacity the oldest id is evicted.
func (c *dedupCache) CheckAndRecord(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return false
	}

	c.seen[id] = struct{}{}
	c.order = append(c.order, id)
	if len(c.order) > c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.seen, oldest)
	}
	return true
}

// Reset drops every recorded id. Called when the owning connection is
// torn down.
func (c *dedupCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order = nil
	c.seen = make(map[string]struct{}, c.capacity)
}

func (c *dedupCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
