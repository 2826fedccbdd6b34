package cache

import (
	"sync"

	"github.com/IvanBrykalov/textcache/internal/util"
	"github.com/IvanBrykalov/textcache/policy"
)

// shard is an independent partition of the cache with its own lock, map,
// and an intrusive doubly linked list ordered by the active policy.
type shard struct {
	// ---- guarded by mu ----
	mu   sync.RWMutex
	m    map[string]*node
	head *node
	tail *node // first place eviction looks
	len  int

	pol     policy.ShardPolicy
	factory policy.Policy

	// total is the cache-wide entry counter. The shard only touches it
	// while holding mu, next to the map mutation it accounts for.
	total *util.Int64Counter
	// clock is the cache-wide logical clock. Ticks are drawn under mu, so
	// within a shard they follow lock order.
	clock *util.Uint64Counter
	opt   *Options

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.Pad
	hits   util.Int64Counter
	misses util.Int64Counter
	evicts util.Uint64Counter
}

func newShard(pol policy.Policy, total *util.Int64Counter, clock *util.Uint64Counter, opt *Options, sizeHint int) *shard {
	s := &shard{
		m:       make(map[string]*node, sizeHint),
		factory: pol,
		total:   total,
		clock:   clock,
		opt:     opt,
	}
	s.pol = pol.New(shardHooks{s: s})
	return s
}

// set inserts or overwrites k. A new key is admitted only while the global
// count is below limit; a negative limit disables the check. Overwrites are
// always accepted.
func (s *shard) set(k, v string, now int64, limit int64) (inserted, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, exists := s.m[k]; exists {
		n.val = v
		n.access = s.clock.Add(1)
		n.touched = now
		s.pol.OnUpdate(n)
		return false, true
	}

	if !s.reserve(limit) {
		return false, false
	}

	tick := s.clock.Add(1)
	n := &node{key: k, val: v, access: tick, seq: tick, created: now, touched: now}
	s.m[k] = n
	s.pol.OnAdd(n)
	return true, true
}

// reserve counts one new entry against the global counter. With a
// non-negative limit the increment is a CAS loop, so concurrent inserts
// into different shards can never push the total past limit.
func (s *shard) reserve(limit int64) bool {
	if limit < 0 {
		s.total.Add(1)
		return true
	}
	for {
		cur := s.total.Load()
		if cur >= limit {
			return false
		}
		if s.total.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// get returns the value, bumps the access frequency and lets the policy
// promote the entry.
func (s *shard) get(k string, now int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		s.misses.Add(1)
		s.opt.Metrics.Miss()
		return "", false
	}

	n.freq++
	n.access = s.clock.Add(1)
	n.touched = now
	s.pol.OnGet(n)
	s.hits.Add(1)
	s.opt.Metrics.Hit()
	return n.val, true
}

// peek returns a snapshot without touching frequency or order.
func (s *shard) peek(k string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.m[k]
	if !ok {
		return Entry{}, false
	}
	return n.entry(), true
}

func (s *shard) contains(k string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[k]
	return ok
}

// remove deletes an entry by key. Returns true if the entry existed.
func (s *shard) remove(k string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.m[k]
	if !ok {
		return false
	}
	s.unlinkLocked(n)
	return true
}

// clear drops every entry and returns how many were resident.
// The policy instance is rebuilt so no per-shard policy state survives.
func (s *shard) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.m)
	s.m = make(map[string]*node)
	s.head, s.tail = nil, nil
	s.len = 0
	s.pol = s.factory.New(shardHooks{s: s})
	s.total.Add(-int64(removed))
	return removed
}

// size returns the number of resident entries in this shard.
func (s *shard) size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.len
}

// sample appends up to limit entries to dst, best victim first as ranked by
// the shard's policy.
func (s *shard) sample(idx, limit int, dst []policy.Sample) []policy.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.pol.Scan(limit, func(x policy.Node) {
		n := x.(*node)
		dst = append(dst, policy.Sample{
			Key:    n.key,
			Shard:  idx,
			Freq:   n.freq,
			Access: n.access,
			Seq:    n.seq,
		})
	})
	return dst
}

// evict removes the sampled victims that are still resident. A victim whose
// key was removed and re-inserted since sampling carries a different seq
// and is skipped.
func (s *shard) evict(victims []policy.Sample, reason EvictReason) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, v := range victims {
		n, ok := s.m[v.Key]
		if !ok || n.seq != v.Seq {
			continue
		}
		s.unlinkLocked(n)
		s.evicts.Add(1)
		removed++
		if cb := s.opt.OnEvict; cb != nil {
			cb(n.key, n.val, reason)
		}
	}
	return removed
}

// -------------------- internals (mu held) --------------------

// unlinkLocked removes n from the policy, the list, the map and the
// global counter.
func (s *shard) unlinkLocked(n *node) {
	s.pol.OnRemove(n)
	s.removeNode(n)
	delete(s.m, n.key)
	s.total.Add(-1)
}

// insertFront inserts n at the head in O(1).
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
}

// moveToFront moves n to the head in O(1).
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

// removeNode unlinks n from the list in O(1).
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
}

// -------------------- policy hooks --------------------

// shardHooks adapts the shard's list operations to policy.Hooks.
type shardHooks struct{ s *shard }

func (h shardHooks) MoveToFront(x policy.Node) { h.s.moveToFront(x.(*node)) }
func (h shardHooks) PushFront(x policy.Node)   { h.s.insertFront(x.(*node)) }
func (h shardHooks) Remove(x policy.Node)      { h.s.removeNode(x.(*node)) }
func (h shardHooks) Back() policy.Node {
	if h.s.tail == nil {
		return nil
	}
	return h.s.tail
}
func (h shardHooks) Prev(x policy.Node) policy.Node {
	if p := x.(*node).prev; p != nil {
		return p
	}
	return nil
}
func (h shardHooks) Len() int { return h.s.len }
