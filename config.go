package goIdentity

import (
	"errors"
	"net/http"
	"time"
)

// Config defines a public type used by goIdentity APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Refresh       RefreshConfig
	Lockout       LockoutConfig
	Permission    PermissionConfig
	Password      PasswordConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Cookie        CookieConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Redis         RedisConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by goIdentity APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	AccessTTL     time.Duration
	ResetTTL      time.Duration
	SigningMethod string // "ed25519" (default), "rs256", "hs256" for tests
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	KeyID         string
	Leeway        time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls refresh token lifetime and the per-row rotation lock.
type RefreshConfig struct {
	TTL        time.Duration
	LockTTL    time.Duration
	SecretSize int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig counts failed logins per normalized email.
type LockoutConfig struct {
	Threshold int
	Window    time.Duration
}

/*
====================================
PERMISSION CONFIG
====================================
*/

// PermissionConfig controls the resolved-permission cache.
type PermissionConfig struct {
	CacheTTL time.Duration
	// LocalCacheSize enables the per-process LRU cache when no cache is
	// supplied to the builder. Zero means redis.
	LocalCacheSize int
	DefaultRole    string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by goIdentity APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

// PasswordResetConfig defines a public type used by goIdentity APIs.
type PasswordResetConfig struct {
	Enabled                  bool
	MaxAttempts              int
	Window                   time.Duration
	EnableIPThrottle         bool
	EnableIdentifierThrottle bool
	// RevokeSessions revokes every active refresh token of the user once the
	// new password is stored.
	RevokeSessions bool
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig controls self-registration.
type AccountConfig struct {
	Enabled                    bool
	EnableIPThrottle           bool
	EnableIdentifierThrottle   bool
	AccountCreationMaxAttempts int
	AccountCreationCooldown    time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig shapes the refresh token cookie set by the HTTP layer.
type CookieConfig struct {
	Name     string
	Secure   bool
	Domain   string
	Path     string
	// SameSite zero picks None when Secure and Lax otherwise.
	SameSite http.SameSite
	MaxAge   time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by goIdentity APIs.
type AuditConfig struct {
	Enabled    bool
	Async      bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goIdentity APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
REDIS CONFIG
====================================
*/

// RedisConfig namespaces the lock and denylist keys.
type RedisConfig struct {
	Prefix string
}

/*
====================================
DEFAULT CONFIG
====================================
*/

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			ResetTTL:      15 * time.Minute,
			SigningMethod: "ed25519",
		},
		Refresh: RefreshConfig{
			TTL:        30 * 24 * time.Hour,
			LockTTL:    5 * time.Second,
			SecretSize: 48,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Window:    time.Hour,
		},
		Permission: PermissionConfig{
			CacheTTL:    15 * time.Minute,
			DefaultRole: "USER",
		},
		Password: PasswordConfig{
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		PasswordReset: PasswordResetConfig{
			Enabled:                  true,
			MaxAttempts:              5,
			Window:                   time.Hour,
			EnableIPThrottle:         true,
			EnableIdentifierThrottle: true,
			RevokeSessions:           true,
		},
		Account: AccountConfig{
			Enabled:                    true,
			EnableIPThrottle:           true,
			EnableIdentifierThrottle:   true,
			AccountCreationMaxAttempts: 5,
			AccountCreationCooldown:    15 * time.Minute,
		},
		Cookie: CookieConfig{
			Name:   "refresh_token",
			Secure: false,
			Path:   "/",
			MaxAge: 30 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    true,
			Async:      true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the baseline configuration. Keys must still be set.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks every section and returns the first violation.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.AccessTTL > time.Hour {
		return errors.New("JWT AccessTTL must be <= 1h")
	}
	if c.JWT.ResetTTL <= 0 {
		return errors.New("JWT ResetTTL must be > 0")
	}
	switch c.JWT.SigningMethod {
	case "ed25519", "rs256":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.PublicKey) == 0 {
			return errors.New(c.JWT.SigningMethod + " requires PrivateKey or PublicKey")
		}
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}

	// Refresh
	if c.Refresh.TTL <= 0 {
		return errors.New("Refresh TTL must be > 0")
	}
	if c.Refresh.TTL <= c.JWT.AccessTTL {
		return errors.New("Refresh TTL must exceed JWT AccessTTL")
	}
	if c.Refresh.LockTTL <= 0 || c.Refresh.LockTTL > time.Minute {
		return errors.New("Refresh LockTTL must be in (0, 1m]")
	}
	if c.Refresh.SecretSize < 32 || c.Refresh.SecretSize > 128 {
		return errors.New("Refresh SecretSize must be in [32, 128]")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Window <= 0 {
		return errors.New("Lockout Window must be > 0")
	}

	// Permission
	if c.Permission.CacheTTL <= 0 {
		return errors.New("Permission CacheTTL must be > 0")
	}
	if c.Permission.LocalCacheSize < 0 {
		return errors.New("Permission LocalCacheSize must be >= 0")
	}
	if c.Permission.DefaultRole == "" {
		return errors.New("Permission DefaultRole must be set")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// Password reset
	if c.PasswordReset.Enabled {
		if c.PasswordReset.MaxAttempts < 1 {
			return errors.New("PasswordReset MaxAttempts must be >= 1")
		}
		if c.PasswordReset.Window <= 0 {
			return errors.New("PasswordReset Window must be > 0")
		}
	}

	// Account
	if c.Account.Enabled {
		if c.Account.AccountCreationMaxAttempts < 1 {
			return errors.New("Account AccountCreationMaxAttempts must be >= 1")
		}
		if c.Account.AccountCreationCooldown <= 0 {
			return errors.New("Account AccountCreationCooldown must be > 0")
		}
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must be set")
	}
	if c.Cookie.MaxAge <= 0 {
		return errors.New("Cookie MaxAge must be > 0")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=None requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.Async && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Async is true")
	}

	return nil
}

// EffectiveSameSite resolves the zero value of SameSite.
func (c CookieConfig) EffectiveSameSite() http.SameSite {
	if c.SameSite != 0 {
		return c.SameSite
	}
	if c.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
