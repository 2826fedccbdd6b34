package util

import "runtime"

// DefaultShardCount is used when no explicit shard count is configured.
const DefaultShardCount = 16

// MaxShardCount caps both explicit and automatic shard counts.
const MaxShardCount = 1 << 12

// ReasonableShardCount picks a shard count based on CPU parallelism.
// Heuristic: nextPow2(2*GOMAXPROCS), clamped to [1..256].
func ReasonableShardCount() int {
	p := runtime.GOMAXPROCS(0)
	if p < 1 {
		p = 1
	}
	n := int(NextPow2(uint64(p * 2)))
	if n > 256 {
		n = 256
	}
	return n
}

// NormalizeShardCount resolves a configured shard count:
//   - 0        -> DefaultShardCount
//   - negative -> ReasonableShardCount()
//   - positive -> rounded up to a power of two, clamped to MaxShardCount
func NormalizeShardCount(n int) int {
	switch {
	case n == 0:
		return DefaultShardCount
	case n < 0:
		return ReasonableShardCount()
	}
	if n > MaxShardCount {
		n = MaxShardCount
	}
	return int(NextPow2(uint64(n)))
}

// ShardIndex maps a 64-bit hash to a shard index.
// Uses a mask when shards is a power of two and falls back to modulo otherwise.
func ShardIndex(hash uint64, shards int) int {
	if shards <= 1 {
		return 0
	}
	if IsPowerOfTwo(uint64(shards)) {
		return int(hash & uint64(shards-1))
	}
	return int(hash % uint64(shards))
}

// IsPowerOfTwo reports whether x is a power of two (> 0).
func IsPowerOfTwo(x uint64) bool {
	return x != 0 && x&(x-1) == 0
}

// NextPow2 returns the smallest power of two >= x.
// 0 and 1 map to 1; results that would overflow clamp to 1<<63.
func NextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	if x > 1<<63 {
		return 1 << 63
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}
