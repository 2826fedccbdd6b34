package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/textcache/cache"
	"github.com/IvanBrykalov/textcache/policy/lfu"
	"github.com/IvanBrykalov/textcache/policy/lru"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "textcache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 100_000, cfg.MaxEntries)
	assert.Equal(t, 70, cfg.MemoryThresholdPercentage)
	assert.Equal(t, 5*time.Second, cfg.CheckInterval())
	assert.Equal(t, 16, cfg.ShardCount)
	assert.Equal(t, 256, cfg.MaxStringLength)
	assert.Equal(t, StrategyRecency, cfg.EvictionStrategy)
	assert.Equal(t, "always", cfg.Admission)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoArgsGivesDefaults(t *testing.T) {
	cfg, err := Load(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Flags(t *testing.T) {
	cfg, err := Load(newFlagSet(), []string{
		"-cache.max-entries=500",
		"-cache.eviction-strategy=frequency",
		"-cache.shards=-1",
		"-log.level=debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.MaxEntries)
	assert.Equal(t, StrategyFrequency, cfg.EvictionStrategy)
	assert.Equal(t, -1, cfg.ShardCount)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeFile(t, `
max_entries: 2000
memory_threshold_percentage: 80
check_interval_seconds: 1
eviction_strategy: frequency
listen_addr: ":9090"
`)
	cfg, err := Load(newFlagSet(), []string{"-config.file=" + path, "-cache.max-entries=3000"})
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.MaxEntries, "flags win over the file")
	assert.Equal(t, 80, cfg.MemoryThresholdPercentage)
	assert.Equal(t, time.Second, cfg.CheckInterval())
	assert.Equal(t, StrategyFrequency, cfg.EvictionStrategy)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, 256, cfg.MaxStringLength, "keys absent from the file keep their default")
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(newFlagSet(), []string{"-config.file=" + writeFile(t, "")})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(newFlagSet(), []string{"-config.file=" + writeFile(t, "max_entrys: 10\n")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_entrys")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(newFlagSet(), []string{"-config.file=/does/not/exist.yaml"})
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_InvalidFlagValue(t *testing.T) {
	_, err := Load(newFlagSet(), []string{"-cache.max-entries=lots"})
	require.Error(t, err)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.MaxEntries = -1
	cfg.MemoryThresholdPercentage = 0
	cfg.CheckIntervalSeconds = 0
	cfg.ShardCount = -2
	cfg.MaxStringLength = 0
	cfg.EvictionStrategy = "random"
	cfg.Admission = "maybe"
	cfg.MemorySource = "swap"
	cfg.LogLevel = "loud"

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{
		"max_entries", "memory_threshold_percentage", "check_interval_seconds",
		"shard_count", "max_string_length", "eviction_strategy", "admission",
		"memory_source", "log_level",
	} {
		assert.True(t, strings.Contains(err.Error(), key), "missing %s in %v", key, err)
	}
}

func TestPolicy(t *testing.T) {
	for strategy, want := range map[string]string{
		"recency":   lru.Name,
		"lru":       lru.Name,
		"Frequency": lfu.Name,
		"lfu":       lfu.Name,
	} {
		cfg := Default()
		cfg.EvictionStrategy = strategy
		pol, err := cfg.Policy()
		require.NoError(t, err, strategy)
		assert.Equal(t, want, pol.Name(), strategy)
	}
}

func TestCacheOptions(t *testing.T) {
	cfg := Default()
	cfg.Admission = "reject"
	cfg.EvictionStrategy = "frequency"
	cfg.AllowEmptyValues = true

	opt, err := cfg.CacheOptions()
	require.NoError(t, err)

	assert.Equal(t, cfg.MaxEntries, opt.MaxEntries)
	assert.Equal(t, cfg.ShardCount, opt.Shards)
	assert.Equal(t, cfg.MaxStringLength, opt.MaxStringLength)
	assert.Equal(t, cache.AdmitReject, opt.Admission)
	assert.Equal(t, lfu.Name, opt.Policy.Name())
	assert.True(t, opt.AllowEmptyValues)

	c, err := cache.New(opt)
	require.NoError(t, err)
	assert.Equal(t, 16, c.ShardCount())
}

func TestSchedulerConfig(t *testing.T) {
	cfg := Default()
	cfg.CheckIntervalSeconds = 2

	sc := cfg.SchedulerConfig()
	assert.Equal(t, 2*time.Second, sc.Interval)
	assert.Equal(t, 70, sc.MemoryThreshold)
	assert.Equal(t, 100_000, sc.MaxEntries)
}
