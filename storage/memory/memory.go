// Package memory implements the L1 layer: a bounded, LRU-ordered, TTL-aware
// cache local to the process.
package memory

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

const probeKey = "__nuvex_ping_probe__"

type entry struct {
	key     string
	value   interface{}
	expires time.Time // zero value means no expiry
	elem    *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

// Layer is the L1 MemoryLayer: a bounded map ordered by recency of access,
// evicting the least-recently-used entry when a set would exceed maxSize.
type Layer struct {
	mu      sync.Mutex
	items   map[string]*entry
	order   *list.List // front = most recently used, back = least recently used
	maxSize int
}

// New returns an empty Layer bounded to maxSize entries. maxSize <= 0 means
// unbounded.
func New(maxSize int) *Layer {
	return &Layer{
		items:   make(map[string]*entry),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the value for k if present and unexpired, marking it most
// recently used.
func (l *Layer) Get(k string) (interface{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getLocked(k, time.Now())
}

func (l *Layer) getLocked(k string, now time.Time) (interface{}, bool) {
	e, ok := l.items[k]
	if !ok {
		return nil, false
	}
	if e.expired(now) {
		l.removeLocked(e)
		return nil, false
	}
	l.order.MoveToFront(e.elem)
	return e.value, true
}

// Set inserts or replaces k, evicting the least-recently-used entry first if
// the layer is at capacity and k is not already present. ttl <= 0 means no
// expiry.
func (l *Layer) Set(k string, v interface{}, ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.setLocked(k, v, ttl, time.Now())
}

func (l *Layer) setLocked(k string, v interface{}, ttl time.Duration, now time.Time) {
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}

	if e, ok := l.items[k]; ok {
		e.value = v
		e.expires = expires
		l.order.MoveToFront(e.elem)
		return
	}

	if l.maxSize > 0 && len(l.items) >= l.maxSize {
		l.evictOldestLocked()
	}

	e := &entry{key: k, value: v, expires: expires}
	e.elem = l.order.PushFront(e)
	l.items[k] = e
}

func (l *Layer) evictOldestLocked() {
	oldest := l.order.Back()
	if oldest == nil {
		return
	}
	l.removeLocked(oldest.Value.(*entry))
}

func (l *Layer) removeLocked(e *entry) {
	l.order.Remove(e.elem)
	delete(l.items, e.key)
}

// Delete removes k, reporting whether it was present.
func (l *Layer) Delete(k string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[k]
	if !ok {
		return false
	}
	l.removeLocked(e)
	return true
}

// Exists reports whether k is present and unexpired, without affecting LRU
// order.
func (l *Layer) Exists(k string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.items[k]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		l.removeLocked(e)
		return false
	}
	return true
}

// Clear empties the layer.
func (l *Layer) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = make(map[string]*entry)
	l.order.Init()
}

// Ping exercises a write and delete of an internal probe key.
func (l *Layer) Ping() bool {
	l.Set(probeKey, true, time.Second)
	l.Delete(probeKey)
	return true
}

// Cleanup scans all entries and deletes those whose expiry has passed,
// returning the number removed.
func (l *Layer) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	removed := 0
	for _, e := range l.items {
		if e.expired(now) {
			l.removeLocked(e)
			removed++
		}
	}
	return removed
}

// Increment reads the current numeric value of k (treating absent as 0),
// adds delta, stores the result with ttl, and returns the new value.
func (l *Layer) Increment(k string, delta int64, ttl time.Duration) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()

	var cur int64
	if v, ok := l.getLocked(k, now); ok {
		n, err := toInt64(v)
		if err != nil {
			return 0, err
		}
		cur = n
	}
	next := cur + delta
	l.setLocked(k, next, ttl, now)
	return next, nil
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("memory: value is not numeric (%T)", v)
	}
}

// Size returns the current number of entries.
func (l *Layer) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// MaxSize returns the configured capacity.
func (l *Layer) MaxSize() int {
	return l.maxSize
}

// Keys returns a snapshot of all unexpired keys, in no particular order.
func (l *Layer) Keys() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	keys := make([]string, 0, len(l.items))
	for k, e := range l.items {
		if !e.expired(now) {
			keys = append(keys, k)
		}
	}
	return keys
}
