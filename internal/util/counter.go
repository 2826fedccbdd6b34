package util

import (
	"sync/atomic"
	"unsafe"
)

// LineSize is the assumed CPU cache line size in bytes.
const LineSize = 64

// Pad occupies one full cache line. Put it between groups of fields that
// are written by different goroutines.
type Pad struct{ _ [LineSize]byte }

// Int64Counter is an atomic int64 that owns its cache line: the global entry
// count and the per-shard hit/miss tallies.
type Int64Counter struct {
	atomic.Int64
	_ [LineSize - 8]byte
}

// Uint64Counter is the unsigned variant, used for the logical clock and the
// eviction tallies.
type Uint64Counter struct {
	atomic.Uint64
	_ [LineSize - 8]byte
}

var (
	_ [LineSize - int(unsafe.Sizeof(Int64Counter{}))]byte
	_ [LineSize - int(unsafe.Sizeof(Uint64Counter{}))]byte
)
