package memory

import (
	"container/list"
	"sync"
)

// lruHandle is the payload stored in a shard's LRU list element: the
// (scope, key) pair, so the list can be walked to evict the oldest
// entries without a second index back into the scope maps.
type lruHandle struct {
	scope, key string
}

// shard is one partition of the backend's key space. Sharding follows
// the teacher's single-mutex Cache but generalizes the lock to guard N
// independent partitions, each holding its own scope→key→entry tree and
// (optionally) its own LRU list for the capacity guard.
//
// A shard's LRU machinery only runs when maxEntries > 0; with the
// default (0, unbounded) it costs nothing beyond the unused nil list.
type shard struct {
	mu         sync.RWMutex
	scopes     map[string]map[string]*entry
	lru        *list.List
	lruElems   map[lruHandle]*list.Element
	maxEntries int
	stats      *stats
}

func newShard(maxEntries int, st *stats) *shard {
	s := &shard{
		scopes:     make(map[string]map[string]*entry),
		maxEntries: maxEntries,
		stats:      st,
	}
	if maxEntries > 0 {
		s.lru = list.New()
		s.lruElems = make(map[lruHandle]*list.Element)
	}
	return s
}

// scopeMap returns (creating if necessary) the key→entry map for scope.
// Callers must hold s.mu for writing.
func (s *shard) scopeMap(scope string) map[string]*entry {
	m, ok := s.scopes[scope]
	if !ok {
		m = make(map[string]*entry)
		s.scopes[scope] = m
	}
	return m
}

// touch records scope/key as most-recently-used, inserting a fresh LRU
// entry if one doesn't exist yet, and evicts the oldest entry if this
// insertion pushed the shard over its capacity. Callers must hold s.mu.
func (s *shard) touch(scope, key string) {
	if s.lru == nil {
		return
	}
	h := lruHandle{scope, key}
	if elem, ok := s.lruElems[h]; ok {
		s.lru.MoveToFront(elem)
		return
	}
	elem := s.lru.PushFront(h)
	s.lruElems[h] = elem
	if s.lru.Len() > s.maxEntries {
		if ev := s.evictOldestLocked(); ev != nil {
			s.stats.evictions.Add(1)
		}
	}
}

// forget removes scope/key from the LRU list without evicting anything
// else; used when a key is deleted through a path other than eviction
// (explicit remove, expiry). Callers must hold s.mu.
func (s *shard) forget(scope, key string) {
	if s.lru == nil {
		return
	}
	h := lruHandle{scope, key}
	if elem, ok := s.lruElems[h]; ok {
		s.lru.Remove(elem)
		delete(s.lruElems, h)
	}
}

// evictOldestLocked drops the least-recently-used entry from both the LRU
// list and the backing scope map. Callers must hold s.mu.
func (s *shard) evictOldestLocked() *evictionStats {
	back := s.lru.Back()
	if back == nil {
		return nil
	}
	h := back.Value.(lruHandle)
	s.lru.Remove(back)
	delete(s.lruElems, h)
	if scopeMap, ok := s.scopes[h.scope]; ok {
		delete(scopeMap, h.key)
	}
	return &evictionStats{scope: h.scope, key: h.key}
}

type evictionStats struct {
	scope, key string
}
