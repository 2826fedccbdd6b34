// Package lfu implements the frequency eviction strategy.
//
// Each shard keeps its entries in a binary min-heap ordered by
// (frequency, insertion sequence), so the root is always the exact next
// victim and the k best victims are found in O(k log k) without touching
// the rest of the shard. A hit costs one O(log n) sift. The shard list is
// still maintained in insertion order but is not used for ranking.
package lfu

import (
	"container/heap"

	"github.com/IvanBrykalov/textcache/policy"
)

// Name is the configuration name of the strategy.
const Name = "frequency"

// Entry is what the strategy needs from a cache node: its ranking fields
// and a slot to remember its heap position.
type Entry interface {
	policy.Node
	Freq() uint64
	Seq() uint64
	HeapIndex() int
	SetHeapIndex(int)
}

type lfuPolicy struct{}

// New returns a Policy that evicts the least frequently read entries first.
// Nodes handed to its shard instances must implement Entry.
func New() policy.Policy { return lfuPolicy{} }

func (lfuPolicy) Name() string { return Name }

func (lfuPolicy) New(h policy.Hooks) policy.ShardPolicy {
	return &lfu{h: h}
}

// Less orders by access frequency, lowest first; ties fall back to
// insertion order.
func (lfuPolicy) Less(a, b policy.Sample) bool {
	return less(a.Freq, a.Seq, b.Freq, b.Seq)
}

func less(fa, sa, fb, sb uint64) bool {
	if fa != fb {
		return fa < fb
	}
	return sa < sb
}

type lfu struct {
	h    policy.Hooks
	heap entries
}

func (p *lfu) OnAdd(n policy.Node) {
	p.h.PushFront(n)
	heap.Push(&p.heap, n.(Entry))
}

// OnGet restores heap order after the shard bumped the frequency.
func (p *lfu) OnGet(n policy.Node) {
	heap.Fix(&p.heap, n.(Entry).HeapIndex())
}

// OnUpdate is a no-op: overwrites keep frequency and sequence.
func (p *lfu) OnUpdate(policy.Node) {}

func (p *lfu) OnRemove(n policy.Node) {
	heap.Remove(&p.heap, n.(Entry).HeapIndex())
}

// Scan visits the heap best-first. A side heap holds the frontier of heap
// positions whose parents were already visited.
func (p *lfu) Scan(limit int, visit func(policy.Node)) {
	if limit <= 0 || len(p.heap) == 0 {
		return
	}
	f := &frontier{h: p.heap, pos: make([]int, 1, min(limit, len(p.heap))+1)}
	for i := 0; i < limit && len(f.pos) > 0; i++ {
		at := heap.Pop(f).(int)
		visit(p.heap[at])
		for _, child := range [2]int{2*at + 1, 2*at + 2} {
			if child < len(p.heap) {
				heap.Push(f, child)
			}
		}
	}
}

// entries is a heap.Interface over resident nodes.
type entries []Entry

func (e entries) Len() int { return len(e) }

func (e entries) Less(i, j int) bool {
	return less(e[i].Freq(), e[i].Seq(), e[j].Freq(), e[j].Seq())
}

func (e entries) Swap(i, j int) {
	e[i], e[j] = e[j], e[i]
	e[i].SetHeapIndex(i)
	e[j].SetHeapIndex(j)
}

func (e *entries) Push(x any) {
	n := x.(Entry)
	n.SetHeapIndex(len(*e))
	*e = append(*e, n)
}

func (e *entries) Pop() any {
	old := *e
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*e = old[:len(old)-1]
	n.SetHeapIndex(-1)
	return n
}

// frontier is a heap of positions in h, ordered by the entries they hold.
type frontier struct {
	h   entries
	pos []int
}

func (f *frontier) Len() int           { return len(f.pos) }
func (f *frontier) Less(i, j int) bool { return f.h.Less(f.pos[i], f.pos[j]) }
func (f *frontier) Swap(i, j int)      { f.pos[i], f.pos[j] = f.pos[j], f.pos[i] }
func (f *frontier) Push(x any)         { f.pos = append(f.pos, x.(int)) }
func (f *frontier) Pop() any {
	x := f.pos[len(f.pos)-1]
	f.pos = f.pos[:len(f.pos)-1]
	return x
}
