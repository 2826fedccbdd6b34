// Package maintenance runs the periodic background pass that keeps a cache
// within its memory and entry-count budgets.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/IvanBrykalov/textcache/cache"
)

const (
	// DefaultInterval is the period between passes.
	DefaultInterval = 5 * time.Second
	// DefaultMemoryThreshold is the utilization (percent) above which a
	// pass evicts a quarter of the cache.
	DefaultMemoryThreshold = 70
)

// ErrAlreadyStarted is returned by Start on a running scheduler.
var ErrAlreadyStarted = errors.New("maintenance: scheduler already started")

// Target is the store a scheduler maintains. *cache.Cache implements it.
type Target interface {
	Len() int
	Evict(n int, reason cache.EvictReason) int
}

// Monitor reports memory utilization in percent. *monitor.MemoryMonitor
// implements it.
type Monitor interface {
	Sample() (int, error)
}

// Config controls when a pass evicts.
type Config struct {
	// Interval is the period between passes.
	Interval time.Duration
	// MemoryThreshold is the utilization percentage that triggers a 25% eviction.
	MemoryThreshold int
	// MaxEntries is the entry ceiling that triggers a capacity eviction.
	MaxEntries int
}

// State is the phase of the scheduler's current pass.
type State int32

const (
	Idle State = iota
	Sampling
	Evicting
)

func (s State) String() string {
	switch s {
	case Sampling:
		return "sampling"
	case Evicting:
		return "evicting"
	default:
		return "idle"
	}
}

// Report describes the outcome of a single pass.
type Report struct {
	Usage           int
	MemoryEvicted   int
	CapacityEvicted int
	// Skipped is set when memory sampling failed and the pass did nothing.
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Evicted returns the total number of entries removed by the pass.
func (r Report) Evicted() int { return r.MemoryEvicted + r.CapacityEvicted }

// Scheduler runs maintenance passes on a fixed interval.
// Thread-safe: All methods are safe for concurrent access.
type Scheduler struct {
	cfg     Config
	target  Target
	monitor Monitor
	logger  log.Logger
	metrics *Metrics

	passMu sync.Mutex // serializes passes
	state  atomic.Int32

	mu     sync.Mutex // guards cancel
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for target. A nil monitor disables the memory
// trigger; nil metrics disables instrumentation.
func New(cfg Config, target Target, mon Monitor, logger log.Logger, metrics *Metrics) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MemoryThreshold <= 0 {
		cfg.MemoryThreshold = DefaultMemoryThreshold
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Scheduler{
		cfg:     cfg,
		target:  target,
		monitor: mon,
		logger:  log.With(logger, "component", "maintenance"),
		metrics: metrics,
	}
}

// Start launches the periodic loop in a new goroutine. The loop ends when
// ctx is canceled or Stop is called; until Stop, a further Start returns
// ErrAlreadyStarted.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// Stop cancels future passes and waits for an in-flight pass to finish.
// It is safe to call Stop more than once, or without Start. A stopped
// scheduler can be started again.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.wg.Wait()
}

// State returns the phase of the current pass.
func (s *Scheduler) State() State { return State(s.state.Load()) }

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	level.Info(s.logger).Log("msg", "maintenance started",
		"interval", s.cfg.Interval,
		"memory_threshold", s.cfg.MemoryThreshold,
		"max_entries", s.cfg.MaxEntries)

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-ctx.Done():
			level.Info(s.logger).Log("msg", "maintenance stopped")
			return
		}
	}
}

// RunOnce performs a single pass:
//  1. sample memory utilization; on failure log and skip the pass;
//  2. above MemoryThreshold, evict a quarter of the live entries;
//  3. at or above MaxEntries, evict max(MaxEntries/10, overflow, 1) entries.
//
// Passes never overlap. A panic inside a pass is recovered, logged and
// reported in Report.Err.
func (s *Scheduler) RunOnce() (rep Report) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("maintenance: pass panicked: %v", r)
			level.Error(s.logger).Log("msg", "maintenance pass failed", "err", rep.Err)
		}
		s.state.Store(int32(Idle))
		rep.Duration = time.Since(start)
		s.observe(rep)
	}()

	if s.monitor != nil {
		s.state.Store(int32(Sampling))
		usage, err := s.monitor.Sample()
		if err != nil {
			level.Warn(s.logger).Log("msg", "memory sampling failed, skipping pass", "err", err)
			rep.Skipped = true
			rep.Err = err
			return rep
		}
		rep.Usage = usage

		if usage > s.cfg.MemoryThreshold {
			if n := s.target.Len() / 4; n > 0 {
				s.state.Store(int32(Evicting))
				rep.MemoryEvicted = s.target.Evict(n, cache.EvictMemory)
				level.Info(s.logger).Log("msg", "memory threshold exceeded",
					"usage", usage, "threshold", s.cfg.MemoryThreshold,
					"requested", n, "evicted", rep.MemoryEvicted)
			}
		}
	}

	if size := s.target.Len(); size > 0 && size >= s.cfg.MaxEntries {
		n := max(s.cfg.MaxEntries/10, size-s.cfg.MaxEntries, 1)
		s.state.Store(int32(Evicting))
		rep.CapacityEvicted = s.target.Evict(n, cache.EvictCapacity)
		level.Info(s.logger).Log("msg", "entry limit reached",
			"size", size, "max_entries", s.cfg.MaxEntries,
			"requested", n, "evicted", rep.CapacityEvicted)
	}
	return rep
}

func (s *Scheduler) observe(rep Report) {
	if s.metrics == nil {
		return
	}
	result := "idle"
	switch {
	case rep.Skipped:
		result = "skipped"
	case rep.Err != nil:
		result = "failed"
	case rep.Evicted() > 0:
		result = "evicted"
	}
	s.metrics.Passes.WithLabelValues(result).Inc()
	s.metrics.PassDuration.Observe(rep.Duration.Seconds())
	if !rep.Skipped {
		s.metrics.MemoryUsage.Set(float64(rep.Usage))
	}
	s.metrics.Evicted.WithLabelValues("memory").Add(float64(rep.MemoryEvicted))
	s.metrics.Evicted.WithLabelValues("capacity").Add(float64(rep.CapacityEvicted))
}
