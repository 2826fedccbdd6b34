package cache

import (
	"fmt"
	"strings"

	"github.com/go-kit/log"

	"github.com/IvanBrykalov/textcache/policy"
)

const (
	// DefaultMaxStringLength bounds keys and values when Options.MaxStringLength is 0.
	DefaultMaxStringLength = 256
	// DefaultEvictionSamples is the per-shard sample cap of one eviction round.
	DefaultEvictionSamples = 128
)

// EvictReason explains why an entry was removed.
type EvictReason int

const (
	// EvictCapacity: the entry count reached MaxEntries.
	EvictCapacity EvictReason = iota
	// EvictMemory: sampled memory usage crossed the configured threshold.
	EvictMemory
	// EvictAdmission: synchronous eviction to make room for an insert (AdmitEvict).
	EvictAdmission
	// EvictManual: an explicit Evict call by the owner of the cache.
	EvictManual
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictMemory:
		return "memory"
	case EvictAdmission:
		return "admission"
	default:
		return "manual"
	}
}

// RejectReason explains why a Put was refused.
type RejectReason int

const (
	// RejectInvalid: empty or over-length key or value.
	RejectInvalid RejectReason = iota
	// RejectCapacity: the admission mode refused a new key.
	RejectCapacity
	// RejectClosed: the cache was closed.
	RejectClosed
)

func (r RejectReason) String() string {
	switch r {
	case RejectInvalid:
		return "invalid"
	case RejectCapacity:
		return "capacity"
	default:
		return "closed"
	}
}

// Admission selects what Put does with a new key when the cache is full.
// Overwrites of resident keys are never refused.
type Admission int

const (
	// AdmitAlways never refuses on capacity; the maintenance scheduler
	// brings the cache back under MaxEntries.
	AdmitAlways Admission = iota
	// AdmitReject refuses new keys while Len() >= MaxEntries.
	AdmitReject
	// AdmitEvict evicts synchronously to make room, refusing only if the
	// cache is still full afterwards.
	AdmitEvict
)

func (a Admission) String() string {
	switch a {
	case AdmitAlways:
		return "always"
	case AdmitReject:
		return "reject"
	case AdmitEvict:
		return "evict"
	default:
		return fmt.Sprintf("Admission(%d)", int(a))
	}
}

// ParseAdmission maps a configuration string to an Admission mode.
func ParseAdmission(s string) (Admission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always", "none":
		return AdmitAlways, nil
	case "reject":
		return AdmitReject, nil
	case "evict":
		return AdmitEvict, nil
	}
	return 0, fmt.Errorf("cache: unknown admission mode %q (use always, reject or evict)", s)
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason, n int)
	Reject(reason RejectReason)
	Size(entries int)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Options configures the cache. Zero values are safe except where noted;
// defaults are applied in New():
//   - Shards == 0           => 16 (negative => derived from GOMAXPROCS)
//   - MaxStringLength == 0  => 256
//   - EvictionSamples == 0  => 128
//   - nil Policy            => recency (LRU)
//   - nil Metrics           => NoopMetrics
//   - nil Logger            => log.NewNopLogger()
type Options struct {
	// MaxEntries is the live entry ceiling. Zero means no capacity at all:
	// every new key is refused. Negative values are invalid.
	MaxEntries int

	// Shards is the number of independent partitions, rounded up to a
	// power of two and fixed for the lifetime of the cache.
	Shards int

	// MaxStringLength is the maximum key and value length in characters.
	MaxStringLength int

	// AllowEmptyValues admits "" as a value. Keys are never empty.
	AllowEmptyValues bool

	// Policy ranks eviction candidates (lru.New() or lfu.New()).
	Policy policy.Policy

	// Admission selects the pre-insert capacity check.
	Admission Admission

	// EvictionSamples caps how many entries one eviction round reads from
	// the tail of each shard.
	EvictionSamples int

	// OnEvict is called for every evicted entry under the shard lock;
	// keep callbacks lightweight.
	OnEvict func(key, value string, reason EvictReason)
	Metrics Metrics
	Logger  log.Logger

	// Clock allows overriding time source (tests). Nil => time.Now().
	Clock Clock
}
