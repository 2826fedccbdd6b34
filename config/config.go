// Package config holds the configuration surface of textcached: a flat YAML
// document whose every key can be overridden by a command line flag.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/textcache/cache"
	"github.com/IvanBrykalov/textcache/internal/logging"
	"github.com/IvanBrykalov/textcache/internal/util"
	"github.com/IvanBrykalov/textcache/maintenance"
	"github.com/IvanBrykalov/textcache/policy"
	"github.com/IvanBrykalov/textcache/policy/lfu"
	"github.com/IvanBrykalov/textcache/policy/lru"
)

const (
	DefaultMaxEntries           = 100_000
	DefaultMemoryThreshold      = maintenance.DefaultMemoryThreshold
	DefaultCheckIntervalSeconds = 5
	DefaultListenAddr           = ":8080"

	StrategyRecency   = "recency"
	StrategyFrequency = "frequency"

	// MemorySourceHeap measures live heap objects of the Go runtime.
	MemorySourceHeap = "heap"
	// MemorySourceProcess measures the resident set size of the process.
	MemorySourceProcess = "process"
)

// Config is the complete daemon configuration.
type Config struct {
	MaxEntries                int    `yaml:"max_entries"`
	MemoryThresholdPercentage int    `yaml:"memory_threshold_percentage"`
	CheckIntervalSeconds      int    `yaml:"check_interval_seconds"`
	ShardCount                int    `yaml:"shard_count"`
	MaxStringLength           int    `yaml:"max_string_length"`
	EvictionStrategy          string `yaml:"eviction_strategy"`

	Admission        string `yaml:"admission"`
	EvictionSamples  int    `yaml:"eviction_samples"`
	AllowEmptyValues bool   `yaml:"allow_empty_values"`

	// MemorySource selects what the memory monitor measures.
	MemorySource string `yaml:"memory_source"`
	// MaxMemoryBytes is the denominator of the usage percentage. Zero means
	// GOMEMLIMIT, then total system memory.
	MaxMemoryBytes uint64 `yaml:"max_memory_bytes"`

	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`
}

// Default returns the configuration used when neither a file nor flags
// override anything.
func Default() Config {
	return Config{
		MaxEntries:                DefaultMaxEntries,
		MemoryThresholdPercentage: DefaultMemoryThreshold,
		CheckIntervalSeconds:      DefaultCheckIntervalSeconds,
		ShardCount:                util.DefaultShardCount,
		MaxStringLength:           cache.DefaultMaxStringLength,
		EvictionStrategy:          StrategyRecency,
		Admission:                 cache.AdmitAlways.String(),
		EvictionSamples:           cache.DefaultEvictionSamples,
		MemorySource:              MemorySourceHeap,
		ListenAddr:                DefaultListenAddr,
		LogLevel:                  "info",
	}
}

// RegisterFlagsAndApplyDefaults binds every option to a flag on f and
// resets cfg to the defaults.
func (cfg *Config) RegisterFlagsAndApplyDefaults(f *flag.FlagSet) {
	d := Default()
	f.IntVar(&cfg.MaxEntries, "cache.max-entries", d.MaxEntries, "Maximum number of live entries before maintenance evicts.")
	f.IntVar(&cfg.MemoryThresholdPercentage, "cache.memory-threshold", d.MemoryThresholdPercentage, "Memory utilization percentage above which a quarter of the cache is evicted.")
	f.IntVar(&cfg.CheckIntervalSeconds, "cache.check-interval-seconds", d.CheckIntervalSeconds, "Seconds between maintenance passes.")
	f.IntVar(&cfg.ShardCount, "cache.shards", d.ShardCount, "Number of shards, rounded up to a power of two (-1 derives it from GOMAXPROCS).")
	f.IntVar(&cfg.MaxStringLength, "cache.max-string-length", d.MaxStringLength, "Maximum key and value length in characters.")
	f.StringVar(&cfg.EvictionStrategy, "cache.eviction-strategy", d.EvictionStrategy, "Eviction strategy: recency or frequency.")
	f.StringVar(&cfg.Admission, "cache.admission", d.Admission, "What Put does with a new key on a full cache: always, reject or evict.")
	f.IntVar(&cfg.EvictionSamples, "cache.eviction-samples", d.EvictionSamples, "Entries sampled per shard in one eviction round.")
	f.BoolVar(&cfg.AllowEmptyValues, "cache.allow-empty-values", d.AllowEmptyValues, "Accept empty values.")
	f.StringVar(&cfg.MemorySource, "cache.memory-source", d.MemorySource, "Memory measurement: heap or process.")
	f.Uint64Var(&cfg.MaxMemoryBytes, "cache.max-memory-bytes", d.MaxMemoryBytes, "Memory budget in bytes (0 uses GOMEMLIMIT, then total system memory).")
	f.StringVar(&cfg.ListenAddr, "server.listen-addr", d.ListenAddr, "HTTP listen address.")
	f.StringVar(&cfg.LogLevel, "log.level", d.LogLevel, "Log level: debug, info, warn or error.")
}

// Load registers the options on fs, parses args and, when -config.file is
// given, merges the YAML file. Precedence is defaults, then file, then
// explicitly set flags. The result is validated.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	cfg.RegisterFlagsAndApplyDefaults(fs)
	file := fs.String("config.file", "", "YAML configuration file.")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *file != "" {
		// Remember the flags given on the command line; decoding the file
		// writes through the same fields.
		explicit := map[string]string{}
		fs.Visit(func(f *flag.Flag) {
			if f.Name != "config.file" {
				explicit[f.Name] = f.Value.String()
			}
		})
		if err := cfg.LoadFile(*file); err != nil {
			return Config{}, err
		}
		for name, value := range explicit {
			if err := fs.Set(name, value); err != nil {
				return Config{}, fmt.Errorf("reapplying flag -%s: %w", name, err)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes the YAML file at path over cfg. Unknown keys are errors.
func (cfg *Config) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()
	return cfg.decode(f)
}

func (cfg *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// Validate reports every invalid option at once.
func (cfg *Config) Validate() error {
	var errs []error
	if cfg.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("max_entries must be non-negative, got %d", cfg.MaxEntries))
	}
	if cfg.MemoryThresholdPercentage < 1 || cfg.MemoryThresholdPercentage > 100 {
		errs = append(errs, fmt.Errorf("memory_threshold_percentage must be in [1, 100], got %d", cfg.MemoryThresholdPercentage))
	}
	if cfg.CheckIntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("check_interval_seconds must be positive, got %d", cfg.CheckIntervalSeconds))
	}
	if cfg.ShardCount < -1 || cfg.ShardCount > util.MaxShardCount {
		errs = append(errs, fmt.Errorf("shard_count must be -1, 0 or up to %d, got %d", util.MaxShardCount, cfg.ShardCount))
	}
	if cfg.MaxStringLength <= 0 {
		errs = append(errs, fmt.Errorf("max_string_length must be positive, got %d", cfg.MaxStringLength))
	}
	if _, err := cfg.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cache.ParseAdmission(cfg.Admission); err != nil {
		errs = append(errs, err)
	}
	if cfg.EvictionSamples < 0 {
		errs = append(errs, fmt.Errorf("eviction_samples must be non-negative, got %d", cfg.EvictionSamples))
	}
	switch cfg.MemorySource {
	case MemorySourceHeap, MemorySourceProcess:
	default:
		errs = append(errs, fmt.Errorf("memory_source must be %s or %s, got %q", MemorySourceHeap, MemorySourceProcess, cfg.MemorySource))
	}
	if cfg.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	if !slices.Contains(logging.Levels, strings.ToLower(cfg.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(logging.Levels, ", "), cfg.LogLevel))
	}
	return errors.Join(errs...)
}

// CheckInterval returns the period between maintenance passes.
func (cfg *Config) CheckInterval() time.Duration {
	return time.Duration(cfg.CheckIntervalSeconds) * time.Second
}

// Policy maps EvictionStrategy to a cache policy. "lru" and "lfu" are
// accepted as aliases.
func (cfg *Config) Policy() (policy.Policy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.EvictionStrategy)) {
	case StrategyRecency, "lru":
		return lru.New(), nil
	case StrategyFrequency, "lfu":
		return lfu.New(), nil
	}
	return nil, fmt.Errorf("eviction_strategy must be %s or %s, got %q", StrategyRecency, StrategyFrequency, cfg.EvictionStrategy)
}

// CacheOptions converts the cache section into cache.Options. Metrics,
// Logger and OnEvict are left for the caller.
func (cfg *Config) CacheOptions() (cache.Options, error) {
	pol, err := cfg.Policy()
	if err != nil {
		return cache.Options{}, err
	}
	adm, err := cache.ParseAdmission(cfg.Admission)
	if err != nil {
		return cache.Options{}, err
	}
	return cache.Options{
		MaxEntries:       cfg.MaxEntries,
		Shards:           cfg.ShardCount,
		MaxStringLength:  cfg.MaxStringLength,
		AllowEmptyValues: cfg.AllowEmptyValues,
		Policy:           pol,
		Admission:        adm,
		EvictionSamples:  cfg.EvictionSamples,
	}, nil
}

// SchedulerConfig converts the maintenance options.
func (cfg *Config) SchedulerConfig() maintenance.Config {
	return maintenance.Config{
		Interval:        cfg.CheckInterval(),
		MemoryThreshold: cfg.MemoryThresholdPercentage,
		MaxEntries:      cfg.MaxEntries,
	}
}
