// Package cache provides a sharded, in-memory text cache with bounded
// key/value length, recency or frequency based eviction across shards, and
// lightweight metrics hooks.
//
// Design
//
//   - Concurrency: the cache is split into a fixed, power-of-two number of
//     shards (16 by default), each protected by its own RWMutex. A key is
//     routed by xxHash64(key) & (shards-1) and never moves. Foreground Put
//     and Get only ever lock the shard that owns the key.
//
//   - Storage: each shard keeps a map[string]*node for lookups and an
//     intrusive doubly linked list. Recency keeps the list in access order
//     (hits move to the head). Frequency keeps a per-shard min-heap on
//     (frequency, insertion sequence) next to an insertion-ordered list.
//
//   - Size: a single padded atomic counter tracks live entries. It is
//     changed only under the lock of the shard whose map changed, so Len
//     never reports a state that did not exist for some shard.
//
//   - Eviction: Evict(n, reason) asks every shard's policy for its best
//     Options.EvictionSamples victims, ranks the union with Policy.Less and
//     removes the lowest-ranked entries shard by shard. A round never takes
//     an entry ranked above the last sample of a shard that filled its cap,
//     so victims are the globally lowest-ranked entries. Deciding how many
//     entries to drop is left to the caller, normally the maintenance
//     scheduler.
//
//   - Admission: by default Put never refuses on capacity and the
//     maintenance scheduler trims the cache. AdmitReject refuses new keys
//     while the cache is full; AdmitEvict evicts synchronously first.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Reject/Size signals.
//     By default NoopMetrics is used; plug the Prometheus adapter from
//     metrics/prom to export them.
//
// Basic usage
//
//	c, err := cache.New(cache.Options{MaxEntries: 100_000})
//	if err != nil {
//	    return err
//	}
//	c.Put("a", "1")
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//
// Frequency based eviction with synchronous admission
//
//	c, err := cache.New(cache.Options{
//	    MaxEntries: 50_000,
//	    Policy:     lfu.New(),
//	    Admission:  cache.AdmitEvict,
//	})
//
// Thread-safety & complexity
//
// All methods on Cache are safe for concurrent use. Put, Get, Peek and
// Remove cost one map access and a constant amount of pointer fixes.
// An eviction round costs O(shards * EvictionSamples * log) for ranking.
package cache
