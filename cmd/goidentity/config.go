package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// serverConfig is everything the binary needs before building the engine.
type serverConfig struct {
	HTTPAddr        string
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PrivateKeyFile  string
	PublicKeyFile   string
	KeyID           string
	Issuer          string
	CookieSecure    bool
	CookieDomain    string
	TrustProxy      bool
	Migrate         bool
	Dev             bool
	ShutdownTimeout time.Duration
}

// loadConfig parses args. Every flag falls back to its environment
// variable, then to the default.
func loadConfig(args []string) (*serverConfig, error) {
	cfg := &serverConfig{}
	fs := flag.NewFlagSet("goidentity", flag.ContinueOnError)

	fs.StringVar(&cfg.HTTPAddr, "http-addr", envString("HTTP_ADDR", ":8080"), "listen address")
	fs.StringVar(&cfg.DatabaseURL, "database-url", envString("DATABASE_URL", ""), "postgres connection string")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", envString("REDIS_ADDR", "localhost:6379"), "redis address")
	fs.StringVar(&cfg.RedisPassword, "redis-password", envString("REDIS_PASSWORD", ""), "redis password")
	fs.StringVar(&cfg.PrivateKeyFile, "jwt-private-key", envString("JWT_PRIVATE_KEY_FILE", ""), "PEM file with the ed25519 signing key")
	fs.StringVar(&cfg.PublicKeyFile, "jwt-public-key", envString("JWT_PUBLIC_KEY_FILE", ""), "PEM file with the ed25519 verification key")
	fs.StringVar(&cfg.KeyID, "jwt-key-id", envString("JWT_KEY_ID", ""), "kid header of issued tokens")
	fs.StringVar(&cfg.Issuer, "jwt-issuer", envString("JWT_ISSUER", "goidentity"), "iss claim of issued tokens")
	fs.StringVar(&cfg.CookieDomain, "cookie-domain", envString("COOKIE_DOMAIN", ""), "refresh cookie domain")

	redisDB, err := envInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	fs.IntVar(&cfg.RedisDB, "redis-db", redisDB, "redis database number")

	secure, err := envBool("COOKIE_SECURE", true)
	if err != nil {
		return nil, err
	}
	fs.BoolVar(&cfg.CookieSecure, "cookie-secure", secure, "mark the refresh cookie Secure")

	trustProxy, err := envBool("TRUST_PROXY", false)
	if err != nil {
		return nil, err
	}
	fs.BoolVar(&cfg.TrustProxy, "trust-proxy", trustProxy, "take the client IP from X-Forwarded-For")

	fs.BoolVar(&cfg.Migrate, "migrate", true, "apply database migrations on start")
	fs.BoolVar(&cfg.Dev, "dev", false, "human-readable development logging")

	shutdown, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", shutdown, "graceful shutdown budget")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *serverConfig) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be set")
	}
	if c.RedisAddr == "" {
		return errors.New("REDIS_ADDR must be set")
	}
	if c.PrivateKeyFile == "" {
		return errors.New("JWT_PRIVATE_KEY_FILE must be set")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be > 0")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: invalid boolean %q", key, v)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}
