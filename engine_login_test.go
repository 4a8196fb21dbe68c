package goIdentity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/store"
)

func TestLoginIssuesTokensWithPermissions(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")

	ctx := WithUserAgent(context.Background(), "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_0) Safari/605.1.15")
	res, err := engine.Login(ctx, "  Alice@Example.com ", testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected both tokens")
	}
	if !res.Permissions.Can(permission.ActionRead, permission.SubjectUserSelf) {
		t.Fatalf("expected USER permissions, got %v", res.Permissions.Strings())
	}

	auth, err := engine.ValidateAccess(context.Background(), res.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if auth.UserID != "u1" || auth.TokenID == "" {
		t.Fatalf("unexpected auth result %+v", auth)
	}
	if len(auth.Roles) != 1 || auth.Roles[0] != permission.RoleUser {
		t.Fatalf("unexpected roles %v", auth.Roles)
	}

	rows := env.mem.RefreshTokensForUser("u1")
	if len(rows) != 1 || rows[0].Device == "" {
		t.Fatalf("expected one refresh row with a device label, got %+v", rows)
	}

	if _, ok := findLog(activityLogs(t, env), func(l store.ActivityLog) bool {
		return l.EntityType == auditEntityAuth && l.Status == store.StatusSuccess && l.ActorID == "u1"
	}); !ok {
		t.Fatalf("expected successful login audit entry")
	}
	if got := engine.MetricsSnapshot().Counters[MetricLoginSuccess]; got != 1 {
		t.Fatalf("expected one login success metric, got %d", got)
	}
}

func TestLoginWrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")

	_, errWrong := engine.Login(context.Background(), "alice@example.com", "wrong-password-1")
	_, errUnknown := engine.Login(context.Background(), "nobody@example.com", "wrong-password-1")

	if !errors.Is(errWrong, ErrInvalidCredentials) || !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for both, got %v / %v", errWrong, errUnknown)
	}
	if PublicError(errWrong) != ErrUnauthorized || PublicError(errUnknown) != ErrUnauthorized {
		t.Fatalf("expected public errors to collapse to unauthorized")
	}
}

func TestLoginLockoutBlocksCorrectPassword(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := engine.Login(ctx, "alice@example.com", "wrong-password-1"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}

	_, err := engine.Login(ctx, "alice@example.com", testPassword)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected sixth attempt to be locked, got %v", err)
	}
	if PublicError(err) != ErrUnauthorized {
		t.Fatalf("locked account must surface as unauthorized")
	}

	ttl := env.mr.TTL("rl:login:email:alice@example.com")
	if ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected lockout key ttl within 1h, got %v", ttl)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLockoutTriggered] != 1 || snap.Counters[MetricLoginLocked] != 1 {
		t.Fatalf("unexpected lockout metrics %+v", snap.Counters)
	}

	env.mr.FastForward(time.Hour + time.Second)
	if _, err := engine.Login(ctx, "alice@example.com", testPassword); err != nil {
		t.Fatalf("expected login after lockout window, got %v", err)
	}
	if env.mr.Exists("rl:login:email:alice@example.com") {
		t.Fatalf("successful login should clear the failure counter")
	}
}

func TestLoginLockoutHoldsUnderParallelGuesses(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	ctx := context.Background()

	const guesses = 40
	var verified, locked atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Login(ctx, "alice@example.com", "wrong-password-1")
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				verified.Add(1)
			case errors.Is(err, ErrAccountLocked):
				locked.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if verified.Load() != 5 || locked.Load() != guesses-5 {
		t.Fatalf("expected 5 verified and %d locked guesses, got %d/%d", guesses-5, verified.Load(), locked.Load())
	}
	if _, err := engine.Login(ctx, "alice@example.com", testPassword); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("correct password after parallel guesses must stay locked, got %v", err)
	}
	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLockoutTriggered] != 1 {
		t.Fatalf("expected exactly one lockout trigger, got %d", snap.Counters[MetricLockoutTriggered])
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, "alice@example.com", "wrong-password-1")
	}
	mustLogin(t, engine, "alice@example.com")
	for i := 0; i < 4; i++ {
		_, _ = engine.Login(ctx, "alice@example.com", "wrong-password-1")
	}
	if _, err := engine.Login(ctx, "alice@example.com", testPassword); err != nil {
		t.Fatalf("counter should restart after success, got %v", err)
	}
}

func TestLoginFailsClosedWhenRedisIsDown(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	env.mr.Close()

	_, err := engine.Login(context.Background(), "alice@example.com", testPassword)
	if !errors.Is(err, ErrCoordinatorUnavailable) {
		t.Fatalf("expected coordinator unavailable, got %v", err)
	}
	if errors.Is(PublicError(err), ErrUnauthorized) {
		t.Fatalf("an outage must not masquerade as bad credentials")
	}
}

func TestLoginFailureIsAuditedWithReason(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	_, _ = engine.Login(ctx, "alice@example.com", "wrong-password-1")

	entry, ok := findLog(activityLogs(t, env), func(l store.ActivityLog) bool {
		return l.EntityType == auditEntityAuth && l.Status == store.StatusFailed
	})
	if !ok {
		t.Fatalf("expected failed login audit entry")
	}
	if entry.FailureReason != "Invalid credentials" || entry.Context.IP != "203.0.113.7" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.ActorID != "" || entry.ActorSnapshot.Email != "system" {
		t.Fatalf("anonymous failure should be attributed to the system actor, got %+v", entry.ActorSnapshot)
	}
}
