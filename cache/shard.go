package cache

import (
	"sync"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/internal/util"
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list (head=MRU, tail=LRU).
type shard struct {
	// ---- guarded by mu ----
	mu   sync.Mutex
	m    map[string]*node
	head *node // MRU
	tail *node // LRU
	len  int
	cap  int

	set *settings

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicInt64
}

func newShard(capacity int, set *settings) *shard {
	return &shard{
		m:   make(map[string]*node),
		cap: capacity,
		set: set,
	}
}

// Get returns the entry and promotes it to MRU. Entries past MaxStale are
// evicted and reported as a miss; merely stale entries are a hit.
func (s *shard) Get(k string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.set.metrics.Miss()
		return Entry{}, false
	}
	if s.set.tooStale(n.entry) {
		s.evictNode(n, EvictTTL)
		s.misses.Add(1)
		s.set.metrics.Miss()
		return Entry{}, false
	}

	s.moveToFront(n)
	s.hits.Add(1)
	s.set.metrics.Hit()
	return n.entry, true
}

// Set inserts or overwrites an entry and promotes it to MRU.
func (s *shard) Set(e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.m[e.Key]; ok {
		n.entry = e
		s.moveToFront(n)
		s.set.reportSize()
		return
	}

	n := &node{entry: e}
	s.m[e.Key] = n
	s.insertFront(n)
	s.enforceLimitsLocked()
}

// Remove deletes an entry by key. Returns true if the entry existed.
// Explicit removal is not counted as an eviction.
func (s *shard) Remove(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.removeNode(n)
	delete(s.m, k)
	s.set.reportSize()
	return true
}

// Len returns the number of resident entries in this shard.
func (s *shard) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.len
}

// appendTo copies resident entries into dst without touching LRU order.
func (s *shard) appendTo(dst map[string]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, n := range s.m {
		dst[k] = n.entry
	}
}

// -------------------- internals (mu held) --------------------

func (s *shard) insertFront(n *node) {
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
	s.len++
	s.set.resident.Add(1)
}

func (s *shard) moveToFront(n *node) {
	if n == s.head {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev = nil
	n.next = s.head
	if s.head != nil {
		s.head.prev = n
	}
	s.head = n
	if s.tail == nil {
		s.tail = n
	}
}

func (s *shard) removeNode(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if s.head == n {
		s.head = n.next
	}
	if s.tail == n {
		s.tail = n.prev
	}
	n.prev, n.next = nil, nil
	s.len--
	s.set.resident.Add(-1)
}

func (s *shard) evictNode(n *node, reason EvictReason) {
	s.removeNode(n)
	delete(s.m, n.entry.Key)
	s.evicts.Add(1)
	s.set.metrics.Evict(reason)
	s.set.reportSize()
	if cb := s.set.onEvict; cb != nil {
		cb(n.entry, reason)
	}
}

// enforceLimitsLocked evicts LRU entries until the shard is within capacity.
func (s *shard) enforceLimitsLocked() {
	for s.len > s.cap && s.tail != nil {
		s.evictNode(s.tail, EvictCapacity)
	}
	s.set.reportSize()
}
