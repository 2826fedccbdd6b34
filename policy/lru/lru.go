// Package lru implements the recency eviction strategy.
package lru

import "github.com/IvanBrykalov/textcache/policy"

// Name is the configuration name of the strategy.
const Name = "recency"

// lru is a classic "move-to-front" policy: the list head is the most
// recently used entry and the tail the least recently used one.
type lru struct {
	h policy.Hooks
}

type lruPolicy struct{}

// New returns a Policy that evicts the least recently accessed entries first.
func New() policy.Policy { return lruPolicy{} }

func (lruPolicy) Name() string { return Name }

// New implements policy.Policy by binding shard hooks.
func (lruPolicy) New(h policy.Hooks) policy.ShardPolicy {
	return &lru{h: h}
}

// Less orders by last access tick, oldest first; ties fall back to
// insertion order.
func (lruPolicy) Less(a, b policy.Sample) bool {
	if a.Access != b.Access {
		return a.Access < b.Access
	}
	return a.Seq < b.Seq
}

// OnAdd places the new entry at MRU.
func (p *lru) OnAdd(n policy.Node) { p.h.PushFront(n) }

// OnGet promotes the entry to MRU.
func (p *lru) OnGet(n policy.Node) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (overwrites count as recent use).
func (p *lru) OnUpdate(n policy.Node) { p.h.MoveToFront(n) }

// OnRemove is a no-op: LRU keeps no state beyond the shard list.
func (p *lru) OnRemove(policy.Node) {}

// Scan walks from the tail towards the head.
func (p *lru) Scan(limit int, visit func(policy.Node)) {
	for n, i := p.h.Back(), 0; n != nil && i < limit; n, i = p.h.Prev(n), i+1 {
		visit(n)
	}
}
