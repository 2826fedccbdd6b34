// Package monitor samples process memory and reports it as a percentage of
// a configured limit.
package monitor

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNoLimit is returned when a sampler has no memory limit to compare against.
var ErrNoLimit = errors.New("monitor: no memory limit")

// Sampler returns the bytes currently in use and the limit they are
// measured against.
type Sampler func() (used, limit uint64, err error)

// MemoryMonitor turns Sampler readings into a utilization percentage.
// It is safe for concurrent use.
type MemoryMonitor struct {
	sample Sampler
	last   atomic.Int64
}

// New returns a monitor backed by sample.
func New(sample Sampler) *MemoryMonitor {
	return &MemoryMonitor{sample: sample}
}

// Sample reads memory usage once and returns used*100/limit clamped to
// [0,100]. A failed or panicking sampler yields the last good value and a
// non-nil error.
func (m *MemoryMonitor) Sample() (pct int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pct, err = int(m.last.Load()), fmt.Errorf("monitor: sampler panicked: %v", r)
		}
	}()

	used, limit, err := m.sample()
	if err != nil {
		return int(m.last.Load()), err
	}
	if limit == 0 {
		return int(m.last.Load()), ErrNoLimit
	}

	pct = percent(used, limit)
	m.last.Store(int64(pct))
	return pct, nil
}

// UsagePercentage is Sample without the error: it never fails and falls
// back to the last known value, or 0 before the first good sample.
func (m *MemoryMonitor) UsagePercentage() int {
	pct, _ := m.Sample()
	return pct
}

// Last returns the most recent good sample without taking a new one.
func (m *MemoryMonitor) Last() int {
	return int(m.last.Load())
}

func percent(used, limit uint64) int {
	if used >= limit {
		return 100
	}
	// used < limit, so used*100 only overflows for limits above ~184 PB.
	if used > ^uint64(0)/100 {
		return int(used / (limit / 100))
	}
	return int(used * 100 / limit)
}
