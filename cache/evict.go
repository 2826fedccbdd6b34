package cache

import (
	"slices"
	"time"

	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/textcache/policy"
)

// Evict removes up to n entries chosen across all shards by the configured
// policy and returns how many were removed.
//
// Each round reads the EvictionSamples best-ranked entries of every shard,
// ranks the union with Policy.Less and removes the lowest-ranked entries
// that are still needed, never past an entry that a shard's unread
// remainder could outrank. Shards are locked one at a time, both
// while sampling and while removing. Rounds repeat until n entries are
// gone, the cache is empty, or a round makes no progress.
func (c *Cache) Evict(n int, reason EvictReason) int {
	if n <= 0 {
		return 0
	}
	start := time.Now()

	var (
		evicted int
		rounds  int
		samples []policy.Sample
		buckets = make([][]policy.Sample, len(c.shards))
	)
	for evicted < n {
		want := n - evicted

		// A shard that filled its sample cap may hold more entries, all
		// ranked no lower than its last sample. The lowest such last sample
		// bounds what this round can safely take.
		samples = samples[:0]
		var (
			bound    policy.Sample
			bounded  bool
			capacity = c.opt.EvictionSamples
		)
		for i, s := range c.shards {
			from := len(samples)
			samples = s.sample(i, capacity, samples)
			if len(samples)-from == capacity {
				last := samples[len(samples)-1]
				if !bounded || c.opt.Policy.Less(last, bound) {
					bound, bounded = last, true
				}
			}
		}
		if len(samples) == 0 {
			break
		}
		slices.SortFunc(samples, func(a, b policy.Sample) int {
			return policy.Compare(c.opt.Policy, a, b)
		})
		take := len(samples)
		if bounded {
			take, _ = slices.BinarySearchFunc(samples, bound, func(s, b policy.Sample) int {
				if c.opt.Policy.Less(b, s) {
					return 1
				}
				return -1
			})
		}
		samples = samples[:min(take, want)]

		for i := range buckets {
			buckets[i] = buckets[i][:0]
		}
		for _, v := range samples {
			buckets[v.Shard] = append(buckets[v.Shard], v)
		}

		removed := 0
		for i, victims := range buckets {
			if len(victims) > 0 {
				removed += c.shards[i].evict(victims, reason)
			}
		}
		rounds++
		if removed == 0 {
			break
		}
		evicted += removed
	}

	if evicted > 0 {
		c.opt.Metrics.Evict(reason, evicted)
		c.opt.Metrics.Size(c.Len())
	}
	level.Debug(c.opt.Logger).Log(
		"msg", "eviction finished",
		"reason", reason,
		"policy", c.opt.Policy.Name(),
		"requested", n,
		"evicted", evicted,
		"rounds", rounds,
		"duration", time.Since(start),
	)
	return evicted
}
