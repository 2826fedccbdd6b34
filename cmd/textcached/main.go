// Command textcached serves a textcache over HTTP with background
// maintenance and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/procfs"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/textcache/cache"
	"github.com/IvanBrykalov/textcache/config"
	"github.com/IvanBrykalov/textcache/internal/httpapi"
	"github.com/IvanBrykalov/textcache/internal/logging"
	"github.com/IvanBrykalov/textcache/maintenance"
	pmet "github.com/IvanBrykalov/textcache/metrics/prom"
	"github.com/IvanBrykalov/textcache/monitor"
)

const (
	namespace       = "textcache"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		level.Error(logger).Log("msg", "textcached failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger log.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opt, err := cfg.CacheOptions()
	if err != nil {
		return err
	}
	opt.Metrics = pmet.New(reg, namespace, "cache", nil)
	opt.Logger = log.With(logger, "component", "cache")
	c, err := cache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	mon, err := newMonitor(cfg, logger)
	if err != nil {
		return err
	}
	sched := maintenance.New(cfg.SchedulerConfig(), c, mon, logger, maintenance.NewMetrics(reg, namespace))

	api := httpapi.New(c, logger, map[string]http.Handler{
		"GET /metrics": promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api,
		ReadHeaderTimeout: 5 * time.Second,
	}

	level.Info(logger).Log("msg", "starting textcached",
		"addr", cfg.ListenAddr,
		"max_entries", cfg.MaxEntries,
		"shards", c.ShardCount(),
		"strategy", opt.Policy.Name(),
		"admission", opt.Admission)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		level.Info(logger).Log("msg", "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newMonitor builds the memory monitor selected by cfg.MemorySource.
// Without a resolvable limit the memory trigger is disabled and only the
// entry ceiling is enforced.
func newMonitor(cfg config.Config, logger log.Logger) (maintenance.Monitor, error) {
	var fs *procfs.FS
	if pfs, err := procfs.NewDefaultFS(); err == nil {
		fs = &pfs
	} else {
		level.Debug(logger).Log("msg", "procfs unavailable", "err", err)
	}

	limit, source, err := monitor.ResolveLimit(cfg.MaxMemoryBytes, fs)
	if errors.Is(err, monitor.ErrNoLimit) {
		level.Warn(logger).Log("msg", "no memory limit found, memory-based eviction disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sampler monitor.Sampler
	switch cfg.MemorySource {
	case config.MemorySourceProcess:
		if fs == nil {
			return nil, errors.New("memory_source=process requires /proc")
		}
		sampler = monitor.ProcessSampler(*fs, limit)
	default:
		sampler = monitor.HeapSampler(limit)
	}
	level.Info(logger).Log("msg", "memory monitor configured",
		"source", cfg.MemorySource, "limit_bytes", limit, "limit_from", source)
	return monitor.New(sampler), nil
}
