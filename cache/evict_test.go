package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/IvanBrykalov/textcache/policy/lfu"
	"github.com/IvanBrykalov/textcache/policy/lru"
)

// recMetrics records eviction and size signals for assertions.
type recMetrics struct {
	NoopMetrics

	mu      sync.Mutex
	evicted map[EvictReason]int
	rejects map[RejectReason]int
	size    int
}

func newRecMetrics() *recMetrics {
	return &recMetrics{evicted: map[EvictReason]int{}, rejects: map[RejectReason]int{}}
}

func (m *recMetrics) Evict(r EvictReason, n int) { m.mu.Lock(); m.evicted[r] += n; m.mu.Unlock() }
func (m *recMetrics) Reject(r RejectReason)      { m.mu.Lock(); m.rejects[r]++; m.mu.Unlock() }
func (m *recMetrics) Size(n int)                 { m.mu.Lock(); m.size = n; m.mu.Unlock() }

func hit(c *Cache, k string, times int) {
	for i := 0; i < times; i++ {
		c.Get(k)
	}
}

// a(freq 1), b(freq 5), c(freq 1, inserted after a): evicting two under the
// frequency strategy removes a and c; b survives.
func TestEvict_FrequencySelection(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 100, Policy: lfu.New()})
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")
	hit(c, "a", 1)
	hit(c, "b", 5)
	hit(c, "c", 1)

	if got := c.Evict(2, EvictManual); got != 2 {
		t.Fatalf("Evict(2) = %d, want 2", got)
	}
	for _, k := range []string{"a", "c"} {
		if _, ok := c.Peek(k); ok {
			t.Fatalf("%s must be evicted", k)
		}
	}
	if _, ok := c.Peek("b"); !ok {
		t.Fatal("b must survive")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

// Equal frequencies fall back to insertion order.
func TestEvict_FrequencyTieBreakByInsertion(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 100, Policy: lfu.New(), Shards: 1})
	for i := 0; i < 10; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	hit(c, "k:0", 3) // the oldest key is protected by its reads

	c.Evict(3, EvictManual)
	for _, k := range []string{"k:1", "k:2", "k:3"} {
		if _, ok := c.Peek(k); ok {
			t.Fatalf("%s must be evicted", k)
		}
	}
	if _, ok := c.Peek("k:0"); !ok {
		t.Fatal("k:0 must survive")
	}
}

// Under recency the least recently accessed entries go first.
func TestEvict_RecencySelection(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 100, Policy: lru.New()})
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")
	c.Get("a")

	c.Evict(2, EvictManual)
	if _, ok := c.Peek("a"); !ok {
		t.Fatal("a was read last and must survive")
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
}

// Victims are selected across shards, not from a single one.
func TestEvict_CrossShardRecencyOrder(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 10_000, Shards: 16})
	for i := 0; i < 1000; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	if got := c.Evict(100, EvictManual); got != 100 {
		t.Fatalf("Evict(100) = %d", got)
	}
	for i := 0; i < 1000; i++ {
		_, ok := c.Peek("k:" + strconv.Itoa(i))
		if i < 100 && ok {
			t.Fatalf("k:%d is among the 100 oldest and must be evicted", i)
		}
		if i >= 100 && !ok {
			t.Fatalf("k:%d must survive", i)
		}
	}
}

// With a sample cap far below the shard sizes, frequently read entries that
// sit at the old end of every shard are still kept, and the unread entries
// go in insertion order.
func TestEvict_FrequencyBeyondSampleCap(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 10_000, Policy: lfu.New(), Shards: 4, EvictionSamples: 8})
	for i := 0; i < 1000; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	for i := 0; i < 500; i++ {
		hit(c, "k:"+strconv.Itoa(i), 2)
	}

	if got := c.Evict(300, EvictManual); got != 300 {
		t.Fatalf("Evict(300) = %d, want 300", got)
	}
	for i := 0; i < 1000; i++ {
		_, ok := c.Peek("k:" + strconv.Itoa(i))
		evicted := i >= 500 && i < 800
		if ok == evicted {
			t.Fatalf("k:%d present=%v, want evicted=%v", i, ok, evicted)
		}
	}
}

// The same cap under recency still removes exactly the oldest entries.
func TestEvict_RecencyBeyondSampleCap(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 10_000, Shards: 4, EvictionSamples: 8})
	for i := 0; i < 1000; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	if got := c.Evict(300, EvictManual); got != 300 {
		t.Fatalf("Evict(300) = %d, want 300", got)
	}
	for i := 0; i < 1000; i++ {
		if _, ok := c.Peek("k:" + strconv.Itoa(i)); ok == (i < 300) {
			t.Fatalf("k:%d present=%v", i, ok)
		}
	}
}

func TestEvict_BoundedByResidentEntries(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 100})
	for i := 0; i < 5; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	if got := c.Evict(0, EvictManual); got != 0 {
		t.Fatalf("Evict(0) = %d, want 0", got)
	}
	if got := c.Evict(-3, EvictManual); got != 0 {
		t.Fatalf("Evict(-3) = %d, want 0", got)
	}
	if got := c.Evict(10, EvictManual); got != 5 {
		t.Fatalf("Evict(10) = %d, want 5", got)
	}
	if c.Len() != 0 {
		t.Fatalf("Len = %d, want 0", c.Len())
	}
	if got := c.Evict(1, EvictManual); got != 0 {
		t.Fatalf("Evict on empty cache = %d, want 0", got)
	}
}

// A tiny sample cap forces several rounds; the requested count is still met.
func TestEvict_MultipleRounds(t *testing.T) {
	t.Parallel()

	c := newTestCache(t, Options{MaxEntries: 1000, Shards: 4, EvictionSamples: 1})
	for i := 0; i < 100; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}
	if got := c.Evict(50, EvictManual); got != 50 {
		t.Fatalf("Evict(50) = %d, want 50", got)
	}
	if c.Len() != 50 {
		t.Fatalf("Len = %d, want 50", c.Len())
	}
}

func TestEvict_CallbackAndMetrics(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	var (
		mu      sync.Mutex
		evicted = map[string]EvictReason{}
	)
	c := newTestCache(t, Options{
		MaxEntries: 100,
		Metrics:    m,
		OnEvict: func(k, _ string, r EvictReason) {
			mu.Lock()
			evicted[k] = r
			mu.Unlock()
		},
	})
	c.Put("a", "1")
	c.Put("b", "2")
	c.Put("c", "3")

	c.Evict(2, EvictMemory)

	mu.Lock()
	defer mu.Unlock()
	if len(evicted) != 2 || evicted["a"] != EvictMemory || evicted["b"] != EvictMemory {
		t.Fatalf("OnEvict saw %v, want a and b with reason memory", evicted)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.evicted[EvictMemory] != 2 || m.size != 1 {
		t.Fatalf("metrics evicted=%v size=%d, want 2 memory evictions and size 1", m.evicted, m.size)
	}
}

// Rejections are reported by reason.
func TestMetrics_Rejects(t *testing.T) {
	t.Parallel()

	m := newRecMetrics()
	c := newTestCache(t, Options{MaxEntries: 1, Admission: AdmitReject, Metrics: m})
	c.Put("", "v")
	c.Put("a", "1")
	c.Put("b", "2")
	_ = c.Close()
	c.Put("c", "3")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejects[RejectInvalid] != 1 || m.rejects[RejectCapacity] != 1 || m.rejects[RejectClosed] != 1 {
		t.Fatalf("rejects = %v", m.rejects)
	}
}

func TestEvictReason_String(t *testing.T) {
	t.Parallel()

	want := map[EvictReason]string{
		EvictCapacity:  "capacity",
		EvictMemory:    "memory",
		EvictAdmission: "admission",
		EvictManual:    "manual",
	}
	for r, s := range want {
		if r.String() != s {
			t.Fatalf("%d.String() = %q, want %q", int(r), r.String(), s)
		}
	}
}
