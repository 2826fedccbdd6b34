// Command bench runs a synthetic zipf workload against the cache, optionally
// with the maintenance scheduler trimming it, and serves pprof/Prometheus
// endpoints while it runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/textcache/cache"
	"github.com/IvanBrykalov/textcache/config"
	"github.com/IvanBrykalov/textcache/internal/logging"
	"github.com/IvanBrykalov/textcache/maintenance"
	pmet "github.com/IvanBrykalov/textcache/metrics/prom"
	"github.com/IvanBrykalov/textcache/monitor"
)

func main() {
	var (
		maxEntries = flag.Int("max-entries", 100_000, "entry ceiling")
		shards     = flag.Int("shards", 0, "number of shards (0=16, -1=auto)")
		strategy   = flag.String("strategy", config.StrategyRecency, "eviction strategy: recency | frequency")
		admission  = flag.String("admission", "always", "admission mode: always | reject | evict")
		interval   = flag.Duration("maintenance", time.Second, "maintenance interval (0 = disabled)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "preload entries (0 = max-entries/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
		logLevel    = flag.String("log.level", "info", "log level")
	)
	flag.Parse()

	logger, err := logging.New(os.Stderr, *logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if *pprofAddr != "" {
		go func() {
			level.Info(logger).Log("msg", "serving pprof", "addr", *pprofAddr)
			level.Error(logger).Log("msg", "pprof server stopped", "err", http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	reg := prometheus.NewRegistry()
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		level.Info(logger).Log("msg", "serving metrics", "addr", *metricsAddr)
		level.Error(logger).Log("msg", "metrics server stopped", "err", http.ListenAndServe(*metricsAddr, nil))
	}()

	cfg := config.Default()
	cfg.MaxEntries = *maxEntries
	cfg.ShardCount = *shards
	cfg.EvictionStrategy = *strategy
	cfg.Admission = *admission
	opt, err := cfg.CacheOptions()
	if err != nil {
		level.Error(logger).Log("msg", "invalid options", "err", err)
		os.Exit(2)
	}
	opt.Metrics = pmet.New(reg, "textcache", "bench", nil)
	c, err := cache.New(opt)
	if err != nil {
		level.Error(logger).Log("msg", "creating cache", "err", err)
		os.Exit(2)
	}
	defer func() { _ = c.Close() }()

	var sched *maintenance.Scheduler
	if *interval > 0 {
		sched = maintenance.New(maintenance.Config{
			Interval:        *interval,
			MemoryThreshold: cfg.MemoryThresholdPercentage,
			MaxEntries:      cfg.MaxEntries,
		}, c, monitor.New(monitor.HeapSampler(heapLimit())), logger, maintenance.NewMetrics(reg, "textcache"))
	}

	// Preload to get a realistic hit-rate.
	pl := *preload
	if pl == 0 {
		pl = *maxEntries / 2
	}
	for i := 0; i < pl; i++ {
		c.Put("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i))
	}

	readPctVal := *readPct
	keysMax := uint64(*keys - 1)
	seedBase := *seed
	workersN := max(*workers, 1)

	var reads, writes, hits, misses, rejected, total atomic.Uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			level.Error(logger).Log("msg", "starting maintenance", "err", err)
			os.Exit(1)
		}
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workersN; w++ {
		id := w
		g.Go(func() error {
			// rand.Rand is not goroutine-safe; one per worker.
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, *zipfS, *zipfV, keysMax)
			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for gctx.Err() == nil {
				total.Add(1)
				if int(localR.Int31n(100)) < readPctVal {
					reads.Add(1)
					if _, ok := c.Get(keyByZipf()); ok {
						hits.Add(1)
					} else {
						misses.Add(1)
					}
					continue
				}
				writes.Add(1)
				if !c.Put(keyByZipf(), "v"+strconv.Itoa(localR.Int())) {
					rejected.Add(1)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	elapsed := time.Since(start)
	if sched != nil {
		sched.Stop()
	}

	ops := total.Load()
	hitRate := 0.0
	if r := reads.Load(); r > 0 {
		hitRate = float64(hits.Load()) / float64(r) * 100
	}

	st := c.Stats()
	fmt.Printf("strategy=%s admission=%s max=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		opt.Policy.Name(), opt.Admission, *maxEntries, c.ShardCount(), workersN, *keys, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d  rejected=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads.Load(), writes.Load(), rejected.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hits.Load(), misses.Load(), hitRate)
	fmt.Printf("Len()=%d evictions=%d\n", c.Len(), st.Evictions)
}

// heapLimit resolves the memory budget for the heap sampler, falling back
// to 1 GiB when nothing is configured.
func heapLimit() uint64 {
	limit, _, err := monitor.ResolveLimit(0, nil)
	if err != nil {
		return 1 << 30
	}
	return limit
}
