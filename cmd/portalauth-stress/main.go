// Command portalauth-stress fires storms of concurrent requests at an expired
// access token and reports how many refresh exchanges each storm caused.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/internal/portaltest"
	"github.com/MrEthical07/portalAuth/transport"
)

const (
	stressEmail    = "stress@college.edu"
	stressPassword = "stress-password-1"
)

func main() {
	var (
		storms      = flag.Int("storms", 20, "number of 401 storms")
		concurrency = flag.Int("concurrency", 64, "concurrent requests per storm")
		policy      = flag.String("policy", "wait-and-replay", "sibling policy: fail-fast or wait-and-replay")
		minInterval = flag.Duration("min-interval", 20*time.Millisecond, "refresh throttle window")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "stress", "token store key prefix")
	)
	flag.Parse()

	if *storms <= 0 || *concurrency <= 0 || *minInterval <= 0 {
		fmt.Fprintln(os.Stderr, "storms, concurrency, and min-interval must be > 0")
		os.Exit(2)
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", mr.Addr())
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	srv := portaltest.New(0)
	defer srv.Close()
	srv.AddUser(stressEmail, stressPassword, "Stress Runner", "student", nil)

	cfg := portalAuth.DefaultConfig()
	cfg.Transport.BaseURL = srv.URL()
	cfg.Transport.Platform = "stress"
	cfg.Refresh.MinInterval = *minInterval
	cfg.Storage.RedisPrefix = *prefix
	switch *policy {
	case "fail-fast":
		cfg.Refresh.SiblingPolicy = transport.SiblingFailFast
	case "wait-and-replay":
		cfg.Refresh.SiblingPolicy = transport.SiblingWaitAndReplay
	default:
		fmt.Fprintf(os.Stderr, "unknown policy %q\n", *policy)
		os.Exit(2)
	}

	engine, err := portalAuth.New().WithConfig(cfg).WithRedis(client).WithLatencyHistograms(true).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()
	engine.Start(ctx)
	if _, err := engine.Login(ctx, stressEmail, stressPassword); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	var all []stormStats
	for i := 0; i < *storms; i++ {
		// Let the throttle window pass so each storm may refresh once.
		time.Sleep(*minInterval + 5*time.Millisecond)
		s := runStorm(ctx, engine, srv, *concurrency)
		all = append(all, s)
		if !engine.IsAuthenticated() {
			fmt.Fprintf(os.Stderr, "storm %d: session lost\n", i+1)
			break
		}
	}

	fmt.Println("---- results ----")
	printStats(all, *concurrency)
	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: unauthorized=%d refresh_success=%d refresh_throttled=%d replay_success=%d replay_failure=%d\n",
		snap.Counters[portalAuth.MetricUnauthorized],
		snap.Counters[portalAuth.MetricRefreshSuccess],
		snap.Counters[portalAuth.MetricRefreshThrottled],
		snap.Counters[portalAuth.MetricReplaySuccess],
		snap.Counters[portalAuth.MetricReplayFailure],
	)
}

type stormStats struct {
	refreshes int64
	ok        int64
	failed    int64
	latencies []time.Duration
}

func runStorm(ctx context.Context, engine *portalAuth.Engine, srv *portaltest.Backend, concurrency int) stormStats {
	srv.ExpireAccessTokens()
	before := srv.Counters().Refresh

	var (
		wg        sync.WaitGroup
		ok        int64
		failed    int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, concurrency)
		start     = make(chan struct{})
	)
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			t0 := time.Now()
			resp, err := engine.Client().Get(ctx, "/resources/notes")
			d := time.Since(t0)
			if err == nil && resp.StatusCode == http.StatusOK {
				atomic.AddInt64(&ok, 1)
			} else {
				atomic.AddInt64(&failed, 1)
			}
			mu.Lock()
			latencies = append(latencies, d)
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	return stormStats{
		refreshes: srv.Counters().Refresh - before,
		ok:        ok,
		failed:    failed,
		latencies: latencies,
	}
}

func printStats(all []stormStats, concurrency int) {
	var (
		refreshes, ok, failed int64
		maxPerStorm           int64
		samples               []time.Duration
	)
	for _, s := range all {
		refreshes += s.refreshes
		ok += s.ok
		failed += s.failed
		if s.refreshes > maxPerStorm {
			maxPerStorm = s.refreshes
		}
		samples = append(samples, s.latencies...)
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	fmt.Printf("storms=%d concurrency=%d requests ok=%d failed=%d\n", len(all), concurrency, ok, failed)
	fmt.Printf("refresh calls total=%d max_per_storm=%d\n", refreshes, maxPerStorm)
	fmt.Printf("latency p50=%s p95=%s p99=%s\n",
		percentile(samples, 50).Round(time.Microsecond),
		percentile(samples, 95).Round(time.Microsecond),
		percentile(samples, 99).Round(time.Microsecond),
	)
	if maxPerStorm > 1 {
		fmt.Println("WARNING: a storm caused more than one refresh exchange")
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
