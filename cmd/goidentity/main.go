// Command goidentity serves the identity API over HTTP backed by PostgreSQL
// and Redis.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/httpapi"
	promexport "github.com/MrEthical07/goIdentity/metrics/export/prometheus"
	"github.com/MrEthical07/goIdentity/store/postgres"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("goidentity stopped", zap.Error(err))
	}
	logger.Info("goidentity stopped")
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *serverConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Migrate {
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	db, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = rdb.Close() }()

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}

	engine, err := goIdentity.New().
		WithConfig(engineCfg).
		WithStore(postgres.NewStore(db)).
		WithRedis(rdb).
		WithLogger(logger).
		WithMailer(goIdentity.NewLogMailer(logger)).
		Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Ping(ctx); err != nil {
		logger.Warn("redis not reachable at startup", zap.Error(err))
	}

	if err := prometheus.Register(promexport.NewCollector(engine)); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(engine, logger, httpapi.Options{TrustProxy: cfg.TrustProxy}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func engineConfig(cfg *serverConfig) (goIdentity.Config, error) {
	c := goIdentity.DefaultConfig()

	priv, err := os.ReadFile(cfg.PrivateKeyFile)
	if err != nil {
		return c, fmt.Errorf("read private key: %w", err)
	}
	c.JWT.PrivateKey = priv
	if cfg.PublicKeyFile != "" {
		pub, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return c, fmt.Errorf("read public key: %w", err)
		}
		c.JWT.PublicKey = pub
	}
	c.JWT.KeyID = cfg.KeyID
	c.JWT.Issuer = cfg.Issuer

	c.Cookie.Secure = cfg.CookieSecure
	c.Cookie.Domain = cfg.CookieDomain
	return c, nil
}
