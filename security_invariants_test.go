package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MrEthical07/goIdentity/internal"
	"github.com/MrEthical07/goIdentity/store"
)

func TestSecurityInvariantRefreshSecretNeverStored(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	login := mustLogin(t, engine, "alice@example.com")

	id, secret, err := internal.DecodeRefreshToken(login.RefreshToken)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	row, _ := env.mem.GetRefreshToken(context.Background(), id)
	if row.TokenHash == secret || strings.Contains(row.TokenHash, secret) {
		t.Fatalf("refresh secret stored in clear")
	}
	if row.TokenHash != internal.HashRefreshSecret(secret) {
		t.Fatalf("stored hash does not match the issued secret")
	}

	for _, entry := range activityLogs(t, env) {
		if strings.Contains(fmt.Sprint(entry.Changes), secret) {
			t.Fatalf("refresh secret leaked into the audit log")
		}
	}
}

func TestSecurityInvariantFullTheftScenario(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	ctx := context.Background()

	victim := mustLogin(t, engine, "alice@example.com")
	stolen := victim.RefreshToken

	// Attacker rotates first.
	attacker, err := engine.Refresh(ctx, stolen)
	if err != nil {
		t.Fatalf("attacker refresh: %v", err)
	}
	// Victim presents the now-revoked token.
	if _, err := engine.Refresh(ctx, stolen); !errors.Is(err, ErrTheftDetected) {
		t.Fatalf("expected theft detection, got %v", err)
	}
	// The attacker's successor is dead as well.
	if _, err := engine.Refresh(ctx, attacker.RefreshToken); err == nil {
		t.Fatalf("attacker successor must be revoked")
	}
	// Fresh credentials still work.
	fresh := mustLogin(t, engine, "alice@example.com")
	if _, err := engine.Refresh(ctx, fresh.RefreshToken); err != nil {
		t.Fatalf("new session after theft: %v", err)
	}

	theft := 0
	for _, entry := range activityLogs(t, env) {
		if entry.EntityType == auditEntityRefreshToken && entry.Status == store.StatusFailed {
			theft++
		}
	}
	if theft < 2 {
		t.Fatalf("expected every theft signal audited, got %d", theft)
	}
}

func TestSecurityInvariantPublicErrors(t *testing.T) {
	hidden := []error{
		ErrInvalidCredentials,
		ErrAccountLocked,
		ErrMalformedToken,
		ErrTokenNotFound,
		ErrTokenExpired,
		ErrTokenRevoked,
		ErrTheftDetected,
		ErrUserNotFound,
		fmt.Errorf("%w: wrapped", ErrTokenInvalid),
	}
	for _, err := range hidden {
		if got := PublicError(err); got != ErrUnauthorized {
			t.Fatalf("%v: expected ErrUnauthorized, got %v", err, got)
		}
	}
	for _, err := range []error{ErrLockConflict, ErrRateLimited, ErrCoordinatorUnavailable} {
		if got := PublicError(err); got != err {
			t.Fatalf("%v must pass through, got %v", err, got)
		}
	}
	if PublicError(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestSecurityInvariantDenylistOutageFailsValidation(t *testing.T) {
	engine, env := newTestEngine(t, nil)
	seedUser(t, engine, env, "u1", "alice@example.com")
	login := mustLogin(t, engine, "alice@example.com")
	env.mr.Close()

	if _, err := engine.ValidateAccess(context.Background(), login.AccessToken); !errors.Is(err, ErrCoordinatorUnavailable) {
		t.Fatalf("expected validation to fail closed, got %v", err)
	}
}
