// Package cache stores compiled module output in a bounded in-memory LRU and
// an optional LZ4-compressed on-disk tier.
package cache

import (
	"sync"
	"sync/atomic"
)

// entry is a doubly-linked list node holding a key-value pair.
type entry[K comparable, V any] struct {
	key   K
	value V
	size  int64
	prev  *entry[K, V]
	next  *entry[K, V]
}

// LRU is a thread-safe generic LRU cache bounded by entry count, total
// size, or both.
type LRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[K, V]
	head    *entry[K, V] // Most recently used.
	tail    *entry[K, V] // Least recently used.

	maxEntries int
	maxSize    int64
	curSize    int64
	sizeFunc   func(V) int64

	hits   atomic.Int64
	misses atomic.Int64
}

// LRUOption configures an LRU.
type LRUOption[K comparable, V any] func(*LRU[K, V])

// WithMaxEntries sets the maximum number of entries (count-based eviction).
func WithMaxEntries[K comparable, V any](n int) LRUOption[K, V] {
	return func(c *LRU[K, V]) {
		c.maxEntries = n
	}
}

// WithMaxBytes sets the maximum total size in bytes and a function to
// compute the size of each value.
func WithMaxBytes[K comparable, V any](maxBytes int64, sizeFunc func(V) int64) LRUOption[K, V] {
	return func(c *LRU[K, V]) {
		c.maxSize = maxBytes
		c.sizeFunc = sizeFunc
	}
}

// NewLRU creates a new LRU cache. At least one capacity limit must be
// provided; otherwise NewLRU panics.
func NewLRU[K comparable, V any](opts ...LRUOption[K, V]) *LRU[K, V] {
	c := &LRU[K, V]{
		entries: make(map[K]*entry[K, V]),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxEntries <= 0 && c.maxSize <= 0 {
		panic("cache: at least one capacity limit (WithMaxEntries or WithMaxBytes) is required")
	}

	return c
}

// Get retrieves a value and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		var zero V

		return zero, false
	}

	c.hits.Add(1)
	c.moveToFront(ent)

	return ent.value, true
}

// Put adds or updates a key-value pair. Values larger than the whole cache
// are skipped.
func (c *LRU[K, V]) Put(key K, value V) {
	valSize := c.valueSize(value)
	if c.maxSize > 0 && valSize > c.maxSize {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.entries[key]; ok {
		c.curSize += valSize - ent.size
		ent.value = value
		ent.size = valSize
		c.moveToFront(ent)
		c.evictUntilFits(0, false)

		return
	}

	c.evictUntilFits(valSize, true)

	ent := &entry[K, V]{key: key, value: value, size: valSize}
	c.entries[key] = ent
	c.curSize += valSize
	c.addToFront(ent)
}

// Remove deletes a key. It reports whether the key was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.entries[key]
	if !ok {
		return false
	}

	c.unlink(ent)

	return true
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.entries)
}

// Stats holds cache performance counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Entries     int
	CurrentSize int64
}

// HitRate returns the cache hit rate as a fraction (0.0 to 1.0).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// Stats returns current cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Entries:     len(c.entries),
		CurrentSize: c.curSize,
	}
}

func (c *LRU[K, V]) valueSize(value V) int64 {
	if c.sizeFunc != nil {
		return c.sizeFunc(value)
	}

	return 1
}

// evictUntilFits removes tail entries until a value of valSize fits. adding
// reports whether a new entry is about to be inserted.
func (c *LRU[K, V]) evictUntilFits(valSize int64, adding bool) {
	for adding && c.maxEntries > 0 && len(c.entries) >= c.maxEntries && c.tail != nil {
		c.unlink(c.tail)
	}

	for c.maxSize > 0 && c.curSize+valSize > c.maxSize && c.tail != nil {
		c.unlink(c.tail)
	}
}

func (c *LRU[K, V]) unlink(ent *entry[K, V]) {
	c.removeFromList(ent)
	delete(c.entries, ent.key)
	c.curSize -= ent.size
}

func (c *LRU[K, V]) moveToFront(ent *entry[K, V]) {
	if ent == c.head {
		return
	}

	c.removeFromList(ent)
	c.addToFront(ent)
}

func (c *LRU[K, V]) addToFront(ent *entry[K, V]) {
	ent.prev = nil
	ent.next = c.head

	if c.head != nil {
		c.head.prev = ent
	}

	c.head = ent

	if c.tail == nil {
		c.tail = ent
	}
}

func (c *LRU[K, V]) removeFromList(ent *entry[K, V]) {
	if ent.prev != nil {
		ent.prev.next = ent.next
	} else {
		c.head = ent.next
	}

	if ent.next != nil {
		ent.next.prev = ent.prev
	} else {
		c.tail = ent.prev
	}
}
