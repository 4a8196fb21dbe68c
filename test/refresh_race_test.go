//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"sync"
	"testing"

	goIdentity "github.com/MrEthical07/goIdentity"
)

func TestRefreshRaceSingleWinner(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()
			ctx := context.Background()
			engine := memoryEngine(t, rdb, "race@example.com")

			login, err := engine.Login(ctx, "race@example.com", testPassword)
			if err != nil {
				t.Fatalf("login: %v", err)
			}

			const racers = 24
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
				other   []error
				gate    = make(chan struct{})
			)
			for i := 0; i < racers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-gate
					_, err := engine.Refresh(ctx, login.RefreshToken)
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						winners++
					case errors.Is(err, goIdentity.ErrLockConflict), errors.Is(err, goIdentity.ErrTheftDetected):
					default:
						other = append(other, err)
					}
				}()
			}
			close(gate)
			wg.Wait()

			if winners != 1 {
				t.Fatalf("expected exactly one winner, got %d", winners)
			}
			if len(other) > 0 {
				t.Fatalf("unexpected refresh errors: %v", other)
			}
			if keys, _ := rdb.Keys(ctx, "refresh_lock:*").Result(); len(keys) != 0 {
				t.Fatalf("locks leaked: %v", keys)
			}
		})
	}
}
