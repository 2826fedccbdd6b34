package cache

// Store is the surface the request-handling layer depends on.
// All methods are safe for concurrent use by multiple goroutines.
//
// Typical complexity for operations is amortized O(1):
// a map lookup plus constant-time list adjustments under a shard lock.
type Store interface {
	// Put inserts or overwrites key→value and reports success.
	// Validation failures and capacity refusals return false.
	Put(key, value string) bool

	// TryPut is Put that reports why an insert was refused.
	TryPut(key, value string) error

	// Get returns the value for key and a presence flag.
	// On hit, the access frequency and recency of the entry are updated.
	Get(key string) (string, bool)

	// Len returns the total number of live entries across all shards.
	Len() int

	// Clear removes every entry.
	Clear()
}

var _ Store = (*Cache)(nil)
