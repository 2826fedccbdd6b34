// Package policy defines how a shard orders its entries and how eviction
// candidates taken from different shards are ranked against each other.
package policy

// Node is the minimal contract a cache entry satisfies for a policy.
type Node interface {
	Key() string
}

// Hooks expose O(1) list operations that a policy uses to manipulate the
// shard's intrusive list. Implementations are provided by the shard.
//
// Concurrency: all hook calls happen under the shard lock.
// Hooks manage only the list; the shard owns the key->node map.
type Hooks interface {
	// MoveToFront moves the node to the head of the list.
	MoveToFront(Node)
	// PushFront links a new node at the head of the list.
	PushFront(Node)
	// Remove unlinks the node (map bookkeeping is done by the shard).
	Remove(Node)
	// Back returns the tail of the list (or nil if empty).
	Back() Node
	// Prev returns the neighbour of the node towards the head (or nil).
	Prev(Node) Node
	// Len returns the number of resident nodes in the shard.
	Len() int
}

// ShardPolicy is a per-shard policy instance bound to shard hooks.
// All methods are invoked under the shard lock.
//
// Scan is what eviction samples: it visits up to limit resident nodes,
// best victim first, in the order Policy.Less ranks them. Eviction relies
// on that order to know that a shard's unvisited nodes rank no lower than
// the last one visited. Scan must not modify the policy's state.
type ShardPolicy interface {
	OnAdd(Node)
	OnGet(Node)
	OnUpdate(Node)
	OnRemove(Node)
	Scan(limit int, visit func(Node))
}

// Sample is a copy of an entry's ranking metadata taken under its shard
// lock during an eviction scan. It stays valid after the lock is released.
type Sample struct {
	Key   string
	Shard int

	// Freq counts successful reads of the entry.
	Freq uint64
	// Access is the logical tick of the last access; larger is more recent.
	Access uint64
	// Seq is the logical tick of the first insert; smaller was inserted earlier.
	Seq uint64
}

// Policy is a factory for shard-local instances plus the global ranking
// rule used to compare samples collected from all shards.
type Policy interface {
	// Name returns the configuration name of the strategy.
	Name() string
	// New binds a shard-local instance to the shard's hooks.
	New(Hooks) ShardPolicy
	// Less reports whether a should be evicted before b.
	Less(a, b Sample) bool
}

// Compare adapts p.Less to a three-way comparison for slices.SortFunc.
func Compare(p Policy, a, b Sample) int {
	switch {
	case p.Less(a, b):
		return -1
	case p.Less(b, a):
		return 1
	}
	return 0
}
