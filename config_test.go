package goIdentity

import (
	"net/http"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with keys",
			mutate:    func(c *Config) {},
			wantValid: true,
		},
		{
			name: "missing keys",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "hs256 with secret",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "hs256"
				c.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
				c.JWT.PublicKey = nil
			},
			wantValid: true,
		},
		{
			name: "unknown signing method",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "none"
			},
			wantValid: false,
		},
		{
			name: "access ttl above one hour",
			mutate: func(c *Config) {
				c.JWT.AccessTTL = 2 * time.Hour
			},
			wantValid: false,
		},
		{
			name: "refresh ttl shorter than access ttl",
			mutate: func(c *Config) {
				c.Refresh.TTL = time.Minute
			},
			wantValid: false,
		},
		{
			name: "lock ttl zero",
			mutate: func(c *Config) {
				c.Refresh.LockTTL = 0
			},
			wantValid: false,
		},
		{
			name: "secret too short",
			mutate: func(c *Config) {
				c.Refresh.SecretSize = 8
			},
			wantValid: false,
		},
		{
			name: "lockout threshold zero",
			mutate: func(c *Config) {
				c.Lockout.Threshold = 0
			},
			wantValid: false,
		},
		{
			name: "empty default role",
			mutate: func(c *Config) {
				c.Permission.DefaultRole = ""
			},
			wantValid: false,
		},
		{
			name: "weak argon2 memory",
			mutate: func(c *Config) {
				c.Password.Memory = 1024
			},
			wantValid: false,
		},
		{
			name: "reset disabled ignores its limits",
			mutate: func(c *Config) {
				c.PasswordReset.Enabled = false
				c.PasswordReset.MaxAttempts = 0
			},
			wantValid: true,
		},
		{
			name: "samesite none without secure",
			mutate: func(c *Config) {
				c.Cookie.SameSite = http.SameSiteNoneMode
				c.Cookie.Secure = false
			},
			wantValid: false,
		},
		{
			name: "async audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Async = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig(t)
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatalf("expected invalid config")
			}
		})
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.Refresh.TTL != 30*24*time.Hour {
		t.Fatalf("unexpected token lifetimes %v / %v", cfg.JWT.AccessTTL, cfg.Refresh.TTL)
	}
	if cfg.Lockout.Threshold != 5 || cfg.Lockout.Window != time.Hour {
		t.Fatalf("unexpected lockout %+v", cfg.Lockout)
	}
	if cfg.Refresh.LockTTL != 5*time.Second || cfg.Permission.CacheTTL != 15*time.Minute {
		t.Fatalf("unexpected coordination ttls")
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("defaults without keys must not validate")
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig(t)
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] ^= 0xff
	if cfg.JWT.PrivateKey[0] == clone.JWT.PrivateKey[0] {
		t.Fatalf("clone must not share key material")
	}
}

func TestCookieEffectiveSameSite(t *testing.T) {
	if got := (CookieConfig{Secure: true}).EffectiveSameSite(); got != http.SameSiteNoneMode {
		t.Fatalf("secure cookie should default to None, got %v", got)
	}
	if got := (CookieConfig{}).EffectiveSameSite(); got != http.SameSiteLaxMode {
		t.Fatalf("insecure cookie should default to Lax, got %v", got)
	}
	if got := (CookieConfig{SameSite: http.SameSiteStrictMode}).EffectiveSameSite(); got != http.SameSiteStrictMode {
		t.Fatalf("explicit SameSite must be kept, got %v", got)
	}
}

func TestBuilderRejectsMissingDependencies(t *testing.T) {
	if _, err := New().WithConfig(testConfig(t)).Build(); err == nil {
		t.Fatalf("expected error without redis and store")
	}
}
