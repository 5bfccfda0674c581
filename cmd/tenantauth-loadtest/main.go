// Command tenantauth-loadtest drives wallet logins and bearer verification
// against an engine backed by Redis (or miniredis) and the in-memory store.
package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/storage/memory"
	"github.com/MrEthical07/tenantauth/wallet"
	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/redis/go-redis/v9"
)

type walletState struct {
	key   *ecdsa.PrivateKey
	addr  string
	token string
}

func main() {
	var (
		wallets     = flag.Int("wallets", 2000, "number of wallets to log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "bearer verifications to run")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		tenants     = flag.Int("tenants", 4, "number of tenants to spread wallets over")
	)
	flag.Parse()

	if *wallets <= 0 || *concurrency <= 0 || *ops <= 0 || *tenants <= 0 {
		fmt.Fprintln(os.Stderr, "wallets, concurrency, ops, and tenants must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

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
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	cfg := tenantauth.DefaultConfig()
	cfg.Token.SigningKey = []byte("loadtest-signing-key-0123456789abcdef")
	cfg.RateLimit.Enabled = false

	engine, err := tenantauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserRepository(memory.NewUserStore()).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]walletState, *wallets)
	for i := range states {
		key, err := crypto.GenerateKey()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
			os.Exit(1)
		}
		states[i] = walletState{key: key, addr: wallet.AddressOf(key)}
	}

	fmt.Printf("logging in %d wallets over %d tenants...\n", *wallets, *tenants)
	loginStats := runLoginPhase(ctx, engine, states, *tenants, *concurrency)
	verifyStats := runVerifyPhase(ctx, engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("wallet_login", loginStats)
	printStats("verify_bearer", verifyStats)

	snap := engine.MetricsSnapshot()
	for _, id := range []tenantauth.MetricID{tenantauth.MetricWalletLoginSuccess, tenantauth.MetricValidateSuccess} {
		fmt.Printf("metric %d: counter=%d\n", id, snap.Counters[id])
	}
}

func tenantFor(i, tenants int) string {
	if i%tenants == 0 {
		return tenantauth.DefaultTenantSlug
	}
	return fmt.Sprintf("tenant-%d", i%tenants)
}

func runLoginPhase(ctx context.Context, engine *tenantauth.Engine, states []walletState, tenants, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(states))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(states) {
					return
				}
				st := &states[i]

				t0 := time.Now()
				token, err := login(ctx, engine, tenantFor(i, tenants), st)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				} else {
					st.token = token
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func login(ctx context.Context, engine *tenantauth.Engine, tenant string, st *walletState) (string, error) {
	ch, err := engine.GenerateWalletChallenge(ctx, tenant, st.addr)
	if err != nil {
		return "", err
	}
	sig, err := wallet.SignPersonal(ch.Message, st.key)
	if err != nil {
		return "", err
	}
	res, err := engine.VerifyWalletSignature(ctx, tenant, st.addr, sig, "127.0.0.1")
	if err != nil {
		return "", err
	}
	return res.Token, nil
}

func runVerifyPhase(ctx context.Context, engine *tenantauth.Engine, states []walletState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				st := states[r.Intn(len(states))]
				t0 := time.Now()
				_, err := engine.VerifyBearer(ctx, st.token)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
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
