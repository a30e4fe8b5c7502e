// Package syncmap provides a size-bounded map synchronized with a mutex.
package syncmap

import (
	"iter"
	"sync"
)

// Map is a map synchronized with a mutex that holds at most a fixed number
// of entries. When a new key would exceed the bound, the oldest key is
// evicted.
type Map[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]V
	// order holds keys in insertion order as a ring starting at head.
	order []K
	head  int
	size  int
}

// New returns a new syncmap holding at most size entries.
// If size is not positive, the map holds a single entry.
func New[K comparable, V any](size int) *Map[K, V] {
	size = max(size, 1)
	return &Map[K, V]{
		m:     make(map[K]V, size),
		order: make([]K, 0, size),
		size:  size,
	}
}

// Load returns the value for a key.
func (m *Map[K, V]) Load(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.m[key]
	return v, ok
}

// Store sets the value for a key, evicting the oldest key if the map is full
// and key is new.
func (m *Map[K, V]) Store(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.m[key]; ok {
		m.m[key] = value
		return
	}
	if len(m.order) < m.size {
		m.order = append(m.order, key)
	} else {
		delete(m.m, m.order[m.head])
		m.order[m.head] = key
		m.head = (m.head + 1) % m.size
	}
	m.m[key] = value
}

// Len returns the number of elements in the map.
func (m *Map[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.m)
}

// All iterates over all elements in the map from oldest to newest.
// The map is not locked while the loop body runs.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(f func(K, V) bool) {
		m.mu.Lock()
		keys := make([]K, 0, len(m.order))
		keys = append(keys, m.order[m.head:]...)
		keys = append(keys, m.order[:m.head]...)
		m.mu.Unlock()
		for _, k := range keys {
			v, ok := m.Load(k)
			if !ok {
				continue
			}
			if !f(k, v) {
				return
			}
		}
	}
}
