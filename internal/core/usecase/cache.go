package usecase

import (
	"sync"
	"time"
)

type memoEntry[V any] struct {
	value     V
	createdAt time.Time
}

// MemoCache is a bounded FIFO cache with per-entry TTL. Eviction removes the
// oldest surviving entry by insertion order, not by recency of use. Expired
// entries are deleted on read. Safe under interleaved concurrent calls.
type MemoCache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]memoEntry[V]
	order    []string

	now func() time.Time
}

func NewMemoCache[V any](ttl time.Duration, capacity int) *MemoCache[V] {
	if capacity <= 0 {
		capacity = 100
	}
	return &MemoCache[V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]memoEntry[V], capacity),
		order:    make([]string, 0, capacity),
		now:      time.Now,
	}
}

// Get returns the stored value for key, or absent both when no entry exists
// and when the stored entry's age exceeds the TTL.
func (c *MemoCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	entry, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		c.deleteLocked(key)
		return zero, false
	}
	return entry.value, true
}

func (c *MemoCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.deleteLocked(key)
	}
	for len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = memoEntry[V]{value: value, createdAt: c.now()}
	c.order = append(c.order, key)
}

func (c *MemoCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoCache[V]) evictOldestLocked() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, ok := c.entries[oldest]; ok {
			delete(c.entries, oldest)
			return
		}
	}
}

func (c *MemoCache[V]) deleteLocked(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
