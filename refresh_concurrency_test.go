package goIdentity

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	login := mustLogin(t, engine, "alice@example.com")

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	start := make(chan struct{})
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Refresh(context.Background(), login.RefreshToken)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrLockConflict) || errors.Is(err, ErrTheftDetected) {
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}

	active := 0
	for _, row := range env.mem.RefreshTokensForUser("u1") {
		if row.RevokedAt == nil {
			active++
		}
	}
	if active > 1 {
		t.Fatalf("at most one live successor may exist, got %d", active)
	}
	if keys := env.mr.Keys(); len(keys) > 0 {
		for _, k := range keys {
			if len(k) > len("refresh_lock:") && k[:len("refresh_lock:")] == "refresh_lock:" {
				t.Fatalf("lock %s leaked", k)
			}
		}
	}
}
