package goIdentity

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
	"github.com/MrEthical07/goIdentity/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type testEnv struct {
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	mem    *memory.Store
	mailer *captureMailer
	clock  *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type sentReset struct {
	email     string
	token     string
	expiresAt time.Time
}

type captureMailer struct {
	mu   sync.Mutex
	sent []sentReset
	err  error
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentReset{email: email, token: token, expiresAt: expiresAt})
	return nil
}

func (m *captureMailer) last(t *testing.T) sentReset {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatalf("expected a reset mail")
	}
	return m.sent[len(m.sent)-1]
}

func testConfig(t testing.TB) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	cfg.JWT.KeyID = "test-key"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Audit.Async = false
	return cfg
}

func newTestEngine(t testing.TB, mutate func(*Config)) (*Engine, *testEnv) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig(t)
	if mutate != nil {
		mutate(&cfg)
	}

	env := &testEnv{
		mr:     mr,
		rdb:    rdb,
		mem:    memory.New(nil),
		mailer: &captureMailer{},
		clock:  &testClock{now: time.Now()},
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithStore(env.mem).
		WithMailer(env.mailer).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return engine, env
}

// seedUser stores an account hashed with the engine's own parameters.
func seedUser(t testing.TB, engine *Engine, env *testEnv, id, email string, roles ...string) *store.User {
	t.Helper()
	if len(roles) == 0 {
		roles = []string{permission.RoleUser}
	}
	hash, err := engine.passwordHash.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := env.clock.Now()
	u := &store.User{ID: id, Email: email, Name: "Test", PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	if err := env.mem.CreateUser(context.Background(), u, roles); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	stored, err := env.mem.GetUserByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return stored
}

func mustLogin(t testing.TB, engine *Engine, email string) *LoginResult {
	t.Helper()
	res, err := engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

func activityLogs(t testing.TB, env *testEnv) []store.ActivityLog {
	t.Helper()
	rows, _, err := env.mem.ListActivityLogs(context.Background(), 1, 1000)
	if err != nil {
		t.Fatalf("list activity logs: %v", err)
	}
	return rows
}

func findLog(rows []store.ActivityLog, match func(store.ActivityLog) bool) (store.ActivityLog, bool) {
	for _, row := range rows {
		if match(row) {
			return row, true
		}
	}
	return store.ActivityLog{}, false
}
