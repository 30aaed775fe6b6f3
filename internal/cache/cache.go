// Package cache provides a bounded least-recently-used map.
package cache

import "sync"

// LRU maps keys to values and holds at most its limit of entries,
// evicting the least recently used one on overflow. A limit of zero
// disables the cache: Add stores nothing.
//
// LRU is safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	limit   int
	entries map[K]*node[K, V]
	order   list[K, V]
	stats   Stats
}

// Stats counts cache traffic.
type Stats struct {
	Len       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// New returns an empty cache holding at most limit entries.
func New[K comparable, V any](limit int) *LRU[K, V] {
	return &LRU[K, V]{
		limit:   max(limit, 0),
		entries: make(map[K]*node[K, V]),
	}
}

// Get returns the value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		var zero V
		return zero, false
	}
	c.stats.Hits++
	c.order.moveToFront(n)
	return n.value, true
}

// Add stores value under key, replacing any previous value, and evicts
// the least recently used entry if the cache is over its limit.
func (c *LRU[K, V]) Add(key K, value V) {
	if c.limit == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n, ok := c.entries[key]; ok {
		n.value = value
		c.order.moveToFront(n)
		return
	}
	n := &node[K, V]{key: key, value: value}
	c.entries[key] = n
	c.order.pushFront(n)
	for c.order.len > c.limit {
		oldest := c.order.tail
		c.order.unlink(oldest)
		delete(c.entries, oldest.key)
		c.stats.Evictions++
	}
}

// Remove drops key. It reports whether the key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.unlink(n)
	delete(c.entries, key)
	return true
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.len
}

// Limit returns the maximum number of entries.
func (c *LRU[K, V]) Limit() int { return c.limit }

// Stats returns a snapshot of the counters.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Len = c.order.len
	return s
}
