package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	"github.com/MrEthical07/goSessionAuth/mail"
	"github.com/MrEthical07/goSessionAuth/password"
	"github.com/MrEthical07/goSessionAuth/store"
	"github.com/MrEthical07/goSessionAuth/store/memory"
	"github.com/MrEthical07/goSessionAuth/store/postgres"
)

const loadPassword = "Loadtest1!"

type userState struct {
	email   string
	ctx     context.Context
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		users       = flag.Int("users", 1000, "number of users to seed and log in")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase (authenticate + refresh)")
		dsn         = flag.String("dsn", "", "postgres DSN; if empty, DATABASE_URL env or the memory store is used")
		cost        = flag.Int("bcrypt-cost", 4, "bcrypt cost for seeded passwords")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	url := *dsn
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}

	var st store.Store
	if url == "" {
		st = memory.New()
		fmt.Println("using memory store")
	} else {
		pg, err := postgres.Open(postgres.Config{DSN: url, MaxOpenConns: *concurrency}, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open postgres: %v\n", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
			os.Exit(1)
		}
		st = pg
		fmt.Println("using postgres")
	}

	cfg := goSessionAuth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789abcdef")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-0123456789abcdef")
	cfg.Password.BcryptCost = *cost
	cfg.Audit.Enabled = false

	engine, err := goSessionAuth.New().
		WithConfig(cfg).
		WithStore(st).
		WithMailer(mail.SenderFunc(func(context.Context, mail.Message) error { return nil })).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	hasher, err := password.NewBcrypt(*cost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hasher: %v\n", err)
		os.Exit(1)
	}
	hash, err := hasher.Hash(loadPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash: %v\n", err)
		os.Exit(1)
	}

	states := make([]userState, *users)
	fmt.Printf("seeding %d users...\n", *users)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("load-%d-%s@example.com", i, uuid.NewString()[:8])
		if err := st.Users().Create(ctx, &store.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: &hash,
			IsVerified:   true,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "create user failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = userState{email: email, ctx: clientContext(i)}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loginStats := runLoginPhase(engine, states, *concurrency)
	authStats := runAuthenticatePhase(engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(engine, states, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)
	printStats("refresh", refreshStats)
}

// clientContext gives every seeded user its own address so sessions are
// not shared between users.
func clientContext(i int) context.Context {
	ctx := goSessionAuth.WithClientIP(context.Background(), fmt.Sprintf("10.%d.%d.%d", (i>>16)&0xFF, (i>>8)&0xFF, i&0xFF))
	return goSessionAuth.WithUserAgent(ctx, "goauth-loadtest/1.0 (X11; Linux x86_64)")
}

func runLoginPhase(engine *goSessionAuth.Engine, states []userState, concurrency int) phaseStats {
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
				state := &states[i]
				t0 := time.Now()
				res, err := engine.Login(state.ctx, goSessionAuth.LoginInput{Email: state.email, Password: loadPassword})
				d := time.Since(t0)
				if err != nil || res.Auth == nil {
					atomic.AddInt64(&failures, 1)
				} else {
					state.access = res.Auth.Tokens.AccessToken
					state.refresh = res.Auth.Tokens.RefreshToken
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

func runAuthenticatePhase(engine *goSessionAuth.Engine, states []userState, ops, concurrency int) phaseStats {
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
				state := &states[r.Intn(len(states))]
				t0 := time.Now()
				_, err := engine.Authenticate(state.ctx, state.access)
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

func runRefreshPhase(engine *goSessionAuth.Engine, states []userState, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				state := &states[r.Intn(len(states))]

				state.mu.Lock()
				t0 := time.Now()
				res, err := engine.Refresh(state.ctx, state.refresh)
				d := time.Since(t0)
				if err == nil {
					state.access = res.Tokens.AccessToken
					state.refresh = res.Tokens.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

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
	return samples[(len(samples)-1)*p/100]
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
