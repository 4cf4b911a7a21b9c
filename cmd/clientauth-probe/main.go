// Command clientauth-probe drives a backend through the clientauth engine and
// reports latency percentiles for login and verify.
//
// Each worker owns one engine with its own in-memory session slot. Attempts
// share one ledger: Redis when -redis-addr or REDIS_ADDR is set, an embedded miniredis
// with -miniredis, memory otherwise.
//
// Run against the mock backend:
//
//	go run ./examples/mock-backend &
//	go run ./cmd/clientauth-probe -email alice@example.com -password correct-horse
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/merbs-org/clientauth"
	"github.com/merbs-org/clientauth/internal/logging"
	promexport "github.com/merbs-org/clientauth/metrics/export/prometheus"
	"github.com/merbs-org/clientauth/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file (yaml, json or toml); env CLIENTAUTH_* overrides")
		email       = flag.String("email", "alice@example.com", "login identity")
		password    = flag.String("password", "correct-horse", "login password")
		concurrency = flag.Int("concurrency", 8, "number of workers, one engine each")
		ops         = flag.Int("ops", 200, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address for the shared ledger; REDIS_ADDR env if empty")
		useMini     = flag.Bool("miniredis", false, "use an embedded miniredis when no redis address is given")
		metricsAddr = flag.String("metrics-addr", "", "serve Prometheus metrics on this address while probing")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency and ops must be > 0")
		os.Exit(2)
	}

	cfg, err := clientauth.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	for _, w := range cfg.Lint() {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("detail", w.Message))
	}

	client, cleanup, err := redisClient(*redisAddr, *useMini, logger)
	if err != nil {
		logger.Fatal("redis setup failed", zap.Error(err))
	}
	defer cleanup()

	// Every worker logs in with the same identity, once per op.
	cfg.RateLimit.LoginMaxAttempts = *ops + *concurrency

	engines := make([]*clientauth.Engine, *concurrency)
	for i := range engines {
		b := clientauth.New().
			WithConfig(cfg).
			WithLogger(logger.Named(fmt.Sprintf("worker-%d", i))).
			WithMetricsEnabled(true).
			WithLatencyHistograms(true).
			WithStorage(session.NewMemoryStorage())
		if client != nil {
			b = b.WithRedis(client)
		}
		engine, err := b.Build()
		if err != nil {
			logger.Fatal("engine build failed", zap.Error(err))
		}
		defer engine.Close()
		engines[i] = engine
	}

	if *metricsAddr != "" {
		serveMetrics(*metricsAddr, engines, logger)
	}

	ctx := context.Background()
	logger.Info("probing", zap.String("backend", cfg.API.BaseURL), zap.Int("workers", *concurrency), zap.Int("ops", *ops))

	loginStats := runPhase(ctx, engines, *ops, func(ctx context.Context, e *clientauth.Engine) error {
		_, err := e.Login(ctx, *email, *password)
		return err
	})
	verifyStats := runPhase(ctx, engines, *ops, func(ctx context.Context, e *clientauth.Engine) error {
		return e.Verify(ctx)
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("verify", verifyStats)
	if loginStats.lastErr != nil {
		fmt.Printf("last login error: %s\n", clientauth.DisplayMessage(loginStats.lastErr))
	}
}

func redisClient(addr string, useMini bool, logger *zap.Logger) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	switch {
	case addr != "":
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		logger.Info("using redis", zap.String("addr", addr))
		return client, func() { _ = client.Close() }, nil
	case useMini:
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, err
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Info("using miniredis", zap.String("addr", mr.Addr()))
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	default:
		return nil, func() {}, nil
	}
}

func serveMetrics(addr string, engines []*clientauth.Engine, logger *zap.Logger) {
	reg := prometheus.NewRegistry()
	for i, e := range engines {
		wrapped := prometheus.WrapRegistererWith(prometheus.Labels{"worker": fmt.Sprint(i)}, reg)
		wrapped.MustRegister(promexport.NewExporter(e))
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
	lastErr  error
}

func runPhase(ctx context.Context, engines []*clientauth.Engine, ops int, op func(context.Context, *clientauth.Engine) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		lastErr   error
		mu        sync.Mutex
	)

	start := time.Now()
	for _, e := range engines {
		wg.Add(1)
		go func(e *clientauth.Engine) {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(ctx, e)
				d := time.Since(t0)

				mu.Lock()
				if err != nil {
					failures++
					lastErr = err
				}
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(e)
	}
	wg.Wait()

	stats := computeStats(time.Since(start), latencies, failures)
	stats.lastErr = lastErr
	return stats
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
