package monitor

import (
	"fmt"
	"math"
	"runtime/debug"
	"runtime/metrics"

	"github.com/prometheus/procfs"
)

const heapObjectsMetric = "/memory/classes/heap/objects:bytes"

// HeapSampler measures live heap objects (runtime/metrics) against limit.
func HeapSampler(limit uint64) Sampler {
	return func() (uint64, uint64, error) {
		s := []metrics.Sample{{Name: heapObjectsMetric}}
		metrics.Read(s)
		if s[0].Value.Kind() != metrics.KindUint64 {
			return 0, limit, fmt.Errorf("monitor: runtime metric %s unavailable", heapObjectsMetric)
		}
		return s[0].Value.Uint64(), limit, nil
	}
}

// ProcessSampler measures the resident set size of the current process,
// read from procfs, against limit.
func ProcessSampler(fs procfs.FS, limit uint64) Sampler {
	return func() (uint64, uint64, error) {
		p, err := fs.Self()
		if err != nil {
			return 0, limit, fmt.Errorf("monitor: read self: %w", err)
		}
		st, err := p.Stat()
		if err != nil {
			return 0, limit, fmt.Errorf("monitor: read stat: %w", err)
		}
		return uint64(st.ResidentMemory()), limit, nil
	}
}

// ResolveLimit picks the byte limit memory usage is measured against:
//  1. explicit, when non-zero;
//  2. the Go soft memory limit (GOMEMLIMIT / debug.SetMemoryLimit), when set;
//  3. total system memory from /proc/meminfo.
//
// It returns ErrNoLimit when none of them is available.
func ResolveLimit(explicit uint64, fs *procfs.FS) (uint64, string, error) {
	if explicit > 0 {
		return explicit, "config", nil
	}
	if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
		return uint64(l), "gomemlimit", nil
	}
	if fs != nil {
		mi, err := fs.Meminfo()
		if err == nil && mi.MemTotal != nil && *mi.MemTotal > 0 {
			return *mi.MemTotal * 1024, "meminfo", nil // MemTotal is in kB
		}
	}
	return 0, "", ErrNoLimit
}
