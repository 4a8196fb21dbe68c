package main

import (
	"testing"
	"time"
)

func TestLoadConfigEnvFallback(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	t.Setenv("JWT_PRIVATE_KEY_FILE", "/keys/priv.pem")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")

	cfg, err := loadConfig(nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/identity" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.CookieSecure || cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("env values not applied: %+v", cfg)
	}
}

func TestLoadConfigFlagsOverrideEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/identity")
	t.Setenv("JWT_PRIVATE_KEY_FILE", "/keys/priv.pem")
	t.Setenv("HTTP_ADDR", ":9000")

	cfg, err := loadConfig([]string{"-http-addr", ":7000", "-database-url", "postgres://flag/identity"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":7000" || cfg.DatabaseURL != "postgres://flag/identity" {
		t.Fatalf("flags must win over env: %+v", cfg)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_PRIVATE_KEY_FILE", "/keys/priv.pem")
	if _, err := loadConfig(nil); err == nil {
		t.Fatalf("expected missing DATABASE_URL to fail")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/identity")
	t.Setenv("COOKIE_SECURE", "sometimes")
	if _, err := loadConfig(nil); err == nil {
		t.Fatalf("expected invalid COOKIE_SECURE to fail")
	}
}
