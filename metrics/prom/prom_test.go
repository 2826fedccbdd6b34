package prom

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/textcache/cache"
)

func TestAdapter_CountsCacheEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "textcache", "cache", nil)

	c, err := cache.New(cache.Options{MaxEntries: 2, Admission: cache.AdmitReject, Metrics: a})
	require.NoError(t, err)

	require.True(t, c.Put("a", "1"))
	require.True(t, c.Put("b", "2"))
	assert.False(t, c.Put("c", "3"))
	assert.False(t, c.Put("", "x"))
	c.Get("a")
	c.Get("missing")
	assert.Equal(t, 1, c.Evict(1, cache.EvictManual))

	assert.Equal(t, float64(1), testutil.ToFloat64(a.hits))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.misses))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.rejects.WithLabelValues("capacity")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.rejects.WithLabelValues("invalid")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.evicts.WithLabelValues("manual")))
	assert.Equal(t, float64(1), testutil.ToFloat64(a.size))
}

func TestAdapter_Exposition(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "textcache", "cache", prometheus.Labels{"instance": "t"})
	a.Evict(cache.EvictMemory, 25)
	a.Size(75)

	expected := `
# HELP textcache_cache_size_entries Number of resident entries
# TYPE textcache_cache_size_entries gauge
textcache_cache_size_entries{instance="t"} 75
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "textcache_cache_size_entries"))
	assert.Equal(t, float64(25), testutil.ToFloat64(a.evicts.WithLabelValues("memory")))
	assert.Equal(t, float64(0), testutil.ToFloat64(a.evicts.WithLabelValues("capacity")))
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg, "textcache", "cache", nil)
	assert.Panics(t, func() { New(reg, "textcache", "cache", nil) })
}
