package cache

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/textcache/internal/util"
	"github.com/IvanBrykalov/textcache/policy/lru"
)

var (
	// ErrInvalidKey is returned by TryPut for empty or over-length keys.
	ErrInvalidKey = errors.New("cache: invalid key")
	// ErrInvalidValue is returned by TryPut for empty (unless allowed) or over-length values.
	ErrInvalidValue = errors.New("cache: invalid value")
	// ErrCapacity is returned by TryPut when the admission mode refuses a new key.
	ErrCapacity = errors.New("cache: capacity exhausted")
	// ErrClosed is returned by TryPut after Close.
	ErrClosed = errors.New("cache: closed")
)

// Cache is a sharded in-memory text store. It owns its shards, the global
// entry counter and the logical clock used to order accesses.
// All methods are safe for concurrent use by multiple goroutines.
type Cache struct {
	shards []*shard
	mask   uint64
	opt    Options

	size   util.Int64Counter
	ticks  util.Uint64Counter
	closed atomic.Bool
}

// New constructs a cache from opt, applying defaults for zero fields.
// It fails on negative MaxEntries, MaxStringLength or EvictionSamples and
// on unknown admission modes.
func New(opt Options) (*Cache, error) {
	if opt.MaxEntries < 0 {
		return nil, fmt.Errorf("cache: MaxEntries must be >= 0, got %d", opt.MaxEntries)
	}
	if opt.MaxStringLength < 0 {
		return nil, fmt.Errorf("cache: MaxStringLength must be >= 0, got %d", opt.MaxStringLength)
	}
	if opt.EvictionSamples < 0 {
		return nil, fmt.Errorf("cache: EvictionSamples must be >= 0, got %d", opt.EvictionSamples)
	}
	if opt.Admission < AdmitAlways || opt.Admission > AdmitEvict {
		return nil, fmt.Errorf("cache: unknown admission mode %v", opt.Admission)
	}
	if opt.MaxStringLength == 0 {
		opt.MaxStringLength = DefaultMaxStringLength
	}
	if opt.EvictionSamples == 0 {
		opt.EvictionSamples = DefaultEvictionSamples
	}
	if opt.Policy == nil {
		opt.Policy = lru.New()
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = log.NewNopLogger()
	}
	if opt.Clock == nil {
		opt.Clock = systemClock{}
	}
	opt.Shards = util.NormalizeShardCount(opt.Shards)

	c := &Cache{
		shards: make([]*shard, opt.Shards),
		mask:   uint64(opt.Shards - 1),
		opt:    opt,
	}

	hint := 0
	if opt.MaxEntries > 0 {
		hint = min(opt.MaxEntries/opt.Shards+1, 1<<16)
	}
	for i := range c.shards {
		c.shards[i] = newShard(opt.Policy, &c.size, &c.ticks, &c.opt, hint)
	}
	return c, nil
}

// Put inserts or overwrites key. It returns false when validation fails,
// when capacity enforcement refuses a new key, or after Close.
func (c *Cache) Put(key, value string) bool {
	return c.TryPut(key, value) == nil
}

// TryPut is Put with the reason for a refusal: ErrInvalidKey,
// ErrInvalidValue, ErrCapacity or ErrClosed (match with errors.Is).
func (c *Cache) TryPut(key, value string) error {
	if c.closed.Load() {
		c.opt.Metrics.Reject(RejectClosed)
		return ErrClosed
	}
	if err := c.validate(key, value); err != nil {
		c.opt.Metrics.Reject(RejectInvalid)
		return err
	}

	s := c.shardFor(key)
	limit := c.admissionLimit()
	if c.opt.Admission == AdmitEvict && limit > 0 {
		if over := c.Len() - c.opt.MaxEntries + 1; over > 0 && !s.contains(key) {
			c.Evict(over, EvictAdmission)
		}
	}

	inserted, ok := s.set(key, value, c.now(), limit)
	if !ok {
		c.opt.Metrics.Reject(RejectCapacity)
		return ErrCapacity
	}
	if inserted {
		c.opt.Metrics.Size(c.Len())
	}
	return nil
}

// Get returns the value for key and a presence flag. Invalid keys are a
// plain miss. A hit increments the entry's access frequency and refreshes
// its recency.
func (c *Cache) Get(key string) (string, bool) {
	if c.closed.Load() || !c.validKey(key) {
		c.opt.Metrics.Miss()
		return "", false
	}
	return c.shardFor(key).get(key, c.now())
}

// Peek returns a snapshot of the entry without counting an access.
func (c *Cache) Peek(key string) (Entry, bool) {
	if c.closed.Load() || !c.validKey(key) {
		return Entry{}, false
	}
	return c.shardFor(key).peek(key)
}

// Remove deletes key if present and returns true on success.
func (c *Cache) Remove(key string) bool {
	if c.closed.Load() || !c.validKey(key) {
		return false
	}
	if !c.shardFor(key).remove(key) {
		return false
	}
	c.opt.Metrics.Size(c.Len())
	return true
}

// Len returns the number of live entries across all shards. The value is
// an atomic snapshot and may trail in-flight mutations.
func (c *Cache) Len() int {
	return int(c.size.Load())
}

// Clear empties every shard, one shard at a time. A concurrent operation
// on a given key observes either the pre- or the post-clear state.
func (c *Cache) Clear() {
	removed := 0
	for _, s := range c.shards {
		removed += s.clear()
	}
	c.opt.Metrics.Size(c.Len())
	level.Info(c.opt.Logger).Log("msg", "cache cleared", "removed", removed)
}

// Close marks the cache as closed. Later Puts fail with ErrClosed; Gets and
// Peeks miss. Resident entries are kept until the cache is garbage collected.
func (c *Cache) Close() error {
	c.closed.Store(true)
	return nil
}

// ShardCount returns the fixed number of shards.
func (c *Cache) ShardCount() int { return len(c.shards) }

// Options returns the effective options after defaults were applied.
func (c *Cache) Options() Options { return c.opt }

// Stats is a point-in-time summary of cache activity.
type Stats struct {
	Entries   int
	Shards    int
	Hits      int64
	Misses    int64
	Evictions uint64
	// ShardSizes holds the resident count of every shard, by index.
	ShardSizes []int
}

// Stats aggregates per-shard counters.
func (c *Cache) Stats() Stats {
	st := Stats{
		Entries:    c.Len(),
		Shards:     len(c.shards),
		ShardSizes: make([]int, len(c.shards)),
	}
	for i, s := range c.shards {
		st.Hits += s.hits.Load()
		st.Misses += s.misses.Load()
		st.Evictions += s.evicts.Load()
		st.ShardSizes[i] = s.size()
	}
	return st
}

// ---- helpers ----

// shardFor picks a shard by hashing the key and masking with len-1.
// len(c.shards) is guaranteed to be a power of two.
func (c *Cache) shardFor(key string) *shard {
	return c.shards[util.HashString(key)&c.mask]
}

// admissionLimit returns the entry ceiling a new key is checked against
// under the shard lock, or -1 when new keys are never refused.
func (c *Cache) admissionLimit() int64 {
	switch {
	case c.opt.MaxEntries == 0:
		return 0
	case c.opt.Admission == AdmitAlways:
		return -1
	}
	return int64(c.opt.MaxEntries)
}

func (c *Cache) validate(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	if !c.withinLength(key) {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidKey, c.opt.MaxStringLength)
	}
	if value == "" && !c.opt.AllowEmptyValues {
		return fmt.Errorf("%w: empty", ErrInvalidValue)
	}
	if !c.withinLength(value) {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidValue, c.opt.MaxStringLength)
	}
	return nil
}

func (c *Cache) validKey(key string) bool {
	return key != "" && c.withinLength(key)
}

// withinLength counts characters as code points. The byte length is an
// upper bound on the rune count, so short strings skip the decode.
func (c *Cache) withinLength(s string) bool {
	if len(s) <= c.opt.MaxStringLength {
		return true
	}
	return utf8.RuneCountInString(s) <= c.opt.MaxStringLength
}

func (c *Cache) now() int64 { return c.opt.Clock.NowUnixNano() }

type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return time.Now().UnixNano() }
