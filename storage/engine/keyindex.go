package engine

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const keyIndexShardCount = 32

// keyIndex is an in-process, sharded map of every key the engine has
// observed to the time it first observed it. It is the enumeration source
// for query/keys/getByPrefix/backup — spec.md §9 leaves the enumeration
// strategy open, and this resolves it with the same hash-then-shard-then-
// lock idiom the pack's xxhash import is built for (one mutex per shard
// rather than a single map-wide lock). The recorded time doubles as
// query(sortBy: "createdAt")'s ordering key: on a fresh write it is the
// moment Add is called (synchronous with the L3 insert), and on Connect it
// is rehydrated from L3's own created_at column via Rebuild.
type keyIndex struct {
	shards [keyIndexShardCount]keyIndexShard
}

type keyIndexShard struct {
	mu   sync.RWMutex
	keys map[string]time.Time
}

func newKeyIndex() *keyIndex {
	idx := &keyIndex{}
	for i := range idx.shards {
		idx.shards[i].keys = make(map[string]time.Time)
	}
	return idx
}

func (idx *keyIndex) shardFor(k string) *keyIndexShard {
	h := xxhash.Sum64String(k)
	return &idx.shards[h%keyIndexShardCount]
}

// Add records k as observed if it is not already present. An existing key's
// timestamp is left untouched, matching L3's created_at column, which an
// upsert's ON CONFLICT DO UPDATE never overwrites.
func (idx *keyIndex) Add(k string) {
	s := idx.shardFor(k)
	s.mu.Lock()
	if _, ok := s.keys[k]; !ok {
		s.keys[k] = time.Now()
	}
	s.mu.Unlock()
}

func (idx *keyIndex) Remove(k string) {
	s := idx.shardFor(k)
	s.mu.Lock()
	delete(s.keys, k)
	s.mu.Unlock()
}

// CreatedAt returns the time k was first observed, or false if k is not
// indexed.
func (idx *keyIndex) CreatedAt(k string) (time.Time, bool) {
	s := idx.shardFor(k)
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.keys[k]
	return t, ok
}

// Rebuild replaces the index contents with exactly the given keys and their
// L3-sourced created_at values, used after reloading the authoritative key
// set from L3 on connect.
func (idx *keyIndex) Rebuild(keys map[string]time.Time) {
	for i := range idx.shards {
		idx.shards[i].mu.Lock()
		idx.shards[i].keys = make(map[string]time.Time)
		idx.shards[i].mu.Unlock()
	}
	for k, t := range keys {
		s := idx.shardFor(k)
		s.mu.Lock()
		s.keys[k] = t
		s.mu.Unlock()
	}
}

// Match returns every indexed key matching pattern. An empty pattern
// matches everything. A pattern containing glob metacharacters is matched
// with path.Match; otherwise it is treated as a plain prefix.
func (idx *keyIndex) Match(pattern string) []string {
	isGlob := strings.ContainsAny(pattern, "*?[")
	var matches []string
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		for k := range idx.shards[i].keys {
			switch {
			case pattern == "":
				matches = append(matches, k)
			case isGlob:
				if ok, _ := path.Match(pattern, k); ok {
					matches = append(matches, k)
				}
			default:
				if strings.HasPrefix(k, pattern) {
					matches = append(matches, k)
				}
			}
		}
		idx.shards[i].mu.RUnlock()
	}
	return matches
}

// Len returns the total number of indexed keys.
func (idx *keyIndex) Len() int {
	total := 0
	for i := range idx.shards {
		idx.shards[i].mu.RLock()
		total += len(idx.shards[i].keys)
		idx.shards[i].mu.RUnlock()
	}
	return total
}
