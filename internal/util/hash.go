// Package util contains internal helpers: key hashing, shard math and padded counters.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import "github.com/cespare/xxhash/v2"

// HashString hashes a key for shard selection using 64-bit xxHash.
// The result is stable for the lifetime of the process, so a key always
// lands in the same shard.
func HashString(s string) uint64 {
	return xxhash.Sum64String(s)
}
