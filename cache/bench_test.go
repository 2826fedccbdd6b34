package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/IvanBrykalov/textcache/policy"
	"github.com/IvanBrykalov/textcache/policy/lfu"
	"github.com/IvanBrykalov/textcache/policy/lru"
)

// benchmarkMix exercises a read/write mix against a warm cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines).
// Keys are pre-built so the loop measures the cache, not strconv.
func benchmarkMix(b *testing.B, pol policy.Policy, readsPct int) {
	c, err := New(Options{MaxEntries: 100_000, Policy: pol})
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	const keyMask = (1 << 16) - 1 // hot keyspace (power of two for fast &-mask)
	keys := make([]string, keyMask+1)
	for i := range keys {
		keys[i] = "k:" + strconv.Itoa(i)
	}
	// Preload half the keyspace to get a realistic hit-rate.
	for i := 0; i < len(keys)/2; i++ {
		c.Put(keys[i], "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := keys[i&keyMask]
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Put(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_LRU_90r10w(b *testing.B) { benchmarkMix(b, lru.New(), 90) }
func BenchmarkCache_LRU_50r50w(b *testing.B) { benchmarkMix(b, lru.New(), 50) }
func BenchmarkCache_LFU_90r10w(b *testing.B) { benchmarkMix(b, lfu.New(), 90) }

// BenchmarkEvict measures one 10% eviction pass over a full cache.
func BenchmarkEvict(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		c, _ := New(Options{MaxEntries: 100_000})
		for j := 0; j < 100_000; j++ {
			c.Put("k:"+strconv.Itoa(j), "v")
		}
		b.StartTimer()
		c.Evict(10_000, EvictCapacity)
	}
}
