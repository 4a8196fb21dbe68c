package goIdentity

import (
	"context"
	"testing"
)

func BenchmarkValidateAccess(b *testing.B) {
	engine, env := newTestEngine(b, nil)
	seedUser(b, engine, env, "u1", "alice@example.com")
	login := mustLogin(b, engine, "alice@example.com")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.ValidateAccess(context.Background(), login.AccessToken); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRefreshRotation(b *testing.B) {
	engine, env := newTestEngine(b, nil)
	seedUser(b, engine, env, "u1", "alice@example.com")
	token := mustLogin(b, engine, "alice@example.com").RefreshToken

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		pair, err := engine.Refresh(context.Background(), token)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		token = pair.RefreshToken
	}
}

func BenchmarkPermissionsForUserCached(b *testing.B) {
	engine, env := newTestEngine(b, nil)
	seedUser(b, engine, env, "u1", "alice@example.com")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := engine.PermissionsForUser(context.Background(), "u1"); err != nil {
			b.Fatalf("permissions failed: %v", err)
		}
	}
}
