package cache

import "time"

// node is an intrusive doubly linked list element owned by a shard.
// All fields are guarded by the owning shard's lock.
type node struct {
	key string
	val string

	// Intrusive list links; the policy decides what head and tail mean.
	prev *node
	next *node

	freq   uint64 // successful reads
	access uint64 // logical tick of the last read or write
	seq    uint64 // logical tick of the first insert; never changes

	created int64 // UnixNano
	touched int64 // UnixNano of the last read or write

	heapIdx int // position in the frequency heap, when that policy is active
}

// Key returns the node key (part of policy.Node interface).
func (n *node) Key() string { return n.key }

// Freq, Seq, HeapIndex and SetHeapIndex implement lfu.Entry.
func (n *node) Freq() uint64       { return n.freq }
func (n *node) Seq() uint64        { return n.seq }
func (n *node) HeapIndex() int     { return n.heapIdx }
func (n *node) SetHeapIndex(i int) { n.heapIdx = i }

func (n *node) entry() Entry {
	return Entry{
		Key:        n.key,
		Value:      n.val,
		Frequency:  n.freq,
		CreatedAt:  time.Unix(0, n.created),
		LastAccess: time.Unix(0, n.touched),
	}
}

// Entry is a read-only snapshot of a resident entry.
type Entry struct {
	Key        string
	Value      string
	Frequency  uint64
	CreatedAt  time.Time
	LastAccess time.Time
}
