// Package cache provides the in-memory TTL and capacity bounded memo used
// for upstream payloads and query understanding.
package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/xbarat/grounding-llm-prototypes-sub000/pkg/metrics"
)

type entry[V any] struct {
	value   V
	created time.Time
	seq     uint64
}

// Manager is a TTL and capacity bounded map. Expired entries are dropped
// lazily on lookup. Inserting a new key at capacity first evicts the oldest
// quarter of entries by creation time, at least one.
type Manager[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	seq     uint64

	ttl      time.Duration
	capacity int
	now      func() time.Time
	name     string
	metrics  *metrics.Manager
}

// New creates a Manager. Defaults: no TTL, capacity 1000, wall clock.
func New[V any](opts ...Option) *Manager[V] {
	s := settings{capacity: 1000, now: time.Now, name: "cache"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.capacity < 1 {
		s.capacity = 1
	}
	if s.now == nil {
		s.now = time.Now
	}
	return &Manager[V]{
		entries:  make(map[string]entry[V]),
		ttl:      s.ttl,
		capacity: s.capacity,
		now:      s.now,
		name:     s.name,
		metrics:  s.metrics,
	}
}

// Get returns the value for key while it is younger than the TTL.
func (m *Manager[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero V
	e, ok := m.entries[key]
	if !ok {
		m.metrics.RecordCacheLookup(m.name, metrics.CacheMiss)
		return zero, false
	}
	if m.ttl > 0 && m.now().Sub(e.created) >= m.ttl {
		delete(m.entries, key)
		m.metrics.RecordCacheLookup(m.name, metrics.CacheExpired)
		m.metrics.UpdateCacheEntries(m.name, len(m.entries))
		return zero, false
	}
	m.metrics.RecordCacheLookup(m.name, metrics.CacheHit)
	return e.value, true
}

// Set stores value under key. Replacing an existing key refreshes its
// creation time and never evicts.
func (m *Manager[V]) Set(key string, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.capacity {
		m.evictOldest()
	}
	m.seq++
	m.entries[key] = entry[V]{value: value, created: m.now(), seq: m.seq}
	m.metrics.UpdateCacheEntries(m.name, len(m.entries))
}

// Delete removes key.
func (m *Manager[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	m.metrics.UpdateCacheEntries(m.name, len(m.entries))
}

// Len returns the number of stored entries, expired ones included.
func (m *Manager[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictOldest removes floor(n/4) entries, at least one, oldest first.
// Must be called with m.mu held.
func (m *Manager[V]) evictOldest() {
	n := len(m.entries) / 4
	if n < 1 {
		n = 1
	}

	type aged struct {
		key     string
		created time.Time
		seq     uint64
	}
	all := make([]aged, 0, len(m.entries))
	for k, e := range m.entries {
		all = append(all, aged{key: k, created: e.created, seq: e.seq})
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].created.Equal(all[j].created) {
			return all[i].created.Before(all[j].created)
		}
		return all[i].seq < all[j].seq
	})
	for _, a := range all[:n] {
		delete(m.entries, a.key)
	}
	m.metrics.RecordCacheEviction(m.name, n)
}

// Key returns a stable hash of an endpoint and its scalar params,
// independent of map iteration order.
func Key(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	_, _ = d.WriteString(endpoint)
	for _, k := range keys {
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("=")
		_, _ = d.WriteString(params[k])
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
