// Command goidentity-loadtest measures access validation and refresh
// rotation under concurrency, and probes how racing refreshes of one token
// resolve under the per-token lock.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
	"github.com/MrEthical07/goIdentity/store/memory"
)

const loadPassword = "load-test-password"

type sessionState struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func main() {
	var (
		sessions    = flag.Int("sessions", 500, "number of sessions to seed")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		racers      = flag.Int("racers", 32, "goroutines refreshing the same token in the contention phase")
		rounds      = flag.Int("rounds", 50, "contention rounds")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 || *racers <= 1 || *rounds <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, ops, rounds must be > 0 and racers > 1")
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
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, mem, err := newEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	states := make([]*sessionState, *sessions)
	fmt.Printf("seeding %d sessions...\n", *sessions)
	startSeed := time.Now()
	for i := range states {
		st, err := seedSession(ctx, engine, mem, i)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		states[i] = st
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	contention := runContentionPhase(ctx, engine, states, *racers, *rounds)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printContention(contention, engine.Config().Refresh.LockTTL)
}

func newEngine(client redis.UniversalClient) (*goIdentity.Engine, *memory.Store, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	cfg := goIdentity.DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.KeyID = "loadtest"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Async = true
	cfg.Audit.DropIfFull = true

	mem := memory.New(nil)
	engine, err := goIdentity.New().
		WithConfig(cfg).
		WithRedis(client).
		WithStore(mem).
		WithAuditSink(goIdentity.NoOpSink{}).
		Build()
	if err != nil {
		return nil, nil, err
	}
	return engine, mem, nil
}

var (
	hashOnce sync.Once
	seedHash string
	hashErr  error
)

func seedSession(ctx context.Context, engine *goIdentity.Engine, mem *memory.Store, i int) (*sessionState, error) {
	hashOnce.Do(func() {
		var h *password.Argon2
		h, hashErr = password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
		if hashErr == nil {
			seedHash, hashErr = h.Hash(loadPassword)
		}
	})
	if hashErr != nil {
		return nil, hashErr
	}

	now := time.Now()
	email := fmt.Sprintf("load-%d@example.com", i)
	u := &store.User{ID: fmt.Sprintf("load-%d", i), Email: email, Name: email, PasswordHash: seedHash, CreatedAt: now, UpdatedAt: now}
	if err := mem.CreateUser(ctx, u, []string{permission.RoleUser}); err != nil {
		return nil, err
	}
	res, err := engine.Login(ctx, email, loadPassword)
	if err != nil {
		return nil, err
	}
	return &sessionState{access: res.AccessToken, refresh: res.RefreshToken}, nil
}

func runValidatePhase(ctx context.Context, engine *goIdentity.Engine, states []*sessionState, ops, concurrency int) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				st := states[r.Intn(len(states))]
				st.mu.Lock()
				access := st.access
				st.mu.Unlock()

				t0 := time.Now()
				_, err := engine.ValidateAccess(ctx, access)
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

// runRefreshPhase rotates random sessions. Each session is held by one
// worker at a time so every rotation presents the current token.
func runRefreshPhase(ctx context.Context, engine *goIdentity.Engine, states []*sessionState, ops, concurrency int) phaseStats {
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
			r := mrand.New(mrand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				st := states[r.Intn(len(states))]

				st.mu.Lock()
				t0 := time.Now()
				pair, err := engine.Refresh(ctx, st.refresh)
				d := time.Since(t0)
				if err == nil {
					st.access = pair.AccessToken
					st.refresh = pair.RefreshToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				st.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type contentionStats struct {
	rounds        int
	winners       int64
	lockConflicts int64
	thefts        int64
	other         int64
	multiWinner   int
	slowest       time.Duration
}

// runContentionPhase fires racers concurrent refreshes of one token per
// round. Exactly one may win; the rest must lose to the lock or be treated
// as reuse once the winner has committed.
func runContentionPhase(ctx context.Context, engine *goIdentity.Engine, states []*sessionState, racers, rounds int) contentionStats {
	out := contentionStats{rounds: rounds}
	for round := 0; round < rounds; round++ {
		st := states[round%len(states)]
		token := st.refresh

		var (
			wg      sync.WaitGroup
			winners int64
			gate    = make(chan struct{})
			mu      sync.Mutex
		)
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				pair, err := engine.Refresh(ctx, token)
				d := time.Since(t0)

				mu.Lock()
				defer mu.Unlock()
				if d > out.slowest {
					out.slowest = d
				}
				switch {
				case err == nil:
					winners++
					st.access = pair.AccessToken
					st.refresh = pair.RefreshToken
				case errors.Is(err, goIdentity.ErrLockConflict):
					out.lockConflicts++
				case errors.Is(err, goIdentity.ErrTheftDetected):
					out.thefts++
				default:
					out.other++
				}
			}()
		}
		close(gate)
		wg.Wait()

		out.winners += winners
		if winners > 1 {
			out.multiWinner++
		}
	}
	return out
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

func printContention(s contentionStats, lockTTL time.Duration) {
	fmt.Printf("contention: rounds=%d winners=%d lock_conflicts=%d theft=%d other=%d slowest=%s lock_ttl=%s\n",
		s.rounds, s.winners, s.lockConflicts, s.thefts, s.other, s.slowest.Round(time.Microsecond), lockTTL)
	if s.multiWinner > 0 {
		fmt.Printf("WARNING: %d rounds produced more than one successor\n", s.multiWinner)
	}
	if s.slowest > lockTTL {
		fmt.Println("WARNING: a rotation outlived the lock TTL")
	}
}
