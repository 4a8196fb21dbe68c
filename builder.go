package goIdentity

import (
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/internal/audit"
	"github.com/MrEthical07/goIdentity/internal/limiters"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/password"
	"github.com/MrEthical07/goIdentity/permission"
	"github.com/MrEthical07/goIdentity/session"
	"github.com/MrEthical07/goIdentity/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder collects configuration and collaborators for an [Engine].
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	roles           *permission.RoleManager
	permissionCache permission.Cache
	auditSink       AuditSink
	mailer          Mailer
	logger          *zap.Logger
	now             func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client backing the refresh lock, the denylist, the
// lockout counter and, unless overridden, the permission cache. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore sets the relational store (users, refresh tokens, activity
// logs). Required.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithRoleManager overrides the role catalog used for registration and
// role assignment validation.
func (b *Builder) WithRoleManager(rm *permission.RoleManager) *Builder {
	b.roles = rm
	return b
}

// WithPermissionCache overrides the permission cache.
func (b *Builder) WithPermissionCache(c permission.Cache) *Builder {
	b.permissionCache = c
	return b
}

// WithAuditSink sets where activity log entries go. The default writes
// them into the store.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMailer sets the reset token delivery channel.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock replaces time.Now. Token signing still uses the wall clock.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. A builder
// can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("identity store required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- ROLE MANAGER --------
	roles := b.roles
	if roles == nil {
		roles = permission.DefaultRoleManager()
	}
	roles.Freeze()
	if _, ok := roles.Get(cfg.Permission.DefaultRole); !ok {
		return nil, errors.New("Permission DefaultRole does not exist in role manager")
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		roles:    roles,
		store:    b.store,
		sessions: session.NewStore(b.redis, cfg.Redis.Prefix),
		logger:   logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
	}

	// -------- LIMITERS --------
	window := rate.NewWindow(b.redis)
	engine.lockout = limiters.NewLockoutLimiter(window, limiters.LockoutConfig{
		Threshold: cfg.Lockout.Threshold,
		Window:    cfg.Lockout.Window,
	})
	engine.resetLimiter = limiters.NewPasswordResetLimiter(window, limiters.PasswordResetConfig{
		EnableIdentifierThrottle: cfg.PasswordReset.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.PasswordReset.EnableIPThrottle,
		Window:                   cfg.PasswordReset.Window,
		MaxAttempts:              cfg.PasswordReset.MaxAttempts,
	})
	engine.accountLimiter = limiters.NewAccountCreationLimiter(window, limiters.AccountConfig{
		EnableIdentifierThrottle: cfg.Account.EnableIdentifierThrottle,
		EnableIPThrottle:         cfg.Account.EnableIPThrottle,
		MaxAttempts:              cfg.Account.AccountCreationMaxAttempts,
		Cooldown:                 cfg.Account.AccountCreationCooldown,
	})

	// -------- PERMISSION RESOLVER --------
	cache := b.permissionCache
	if cache == nil {
		if cfg.Permission.LocalCacheSize > 0 {
			cache = permission.NewLRUCache(cfg.Permission.LocalCacheSize, cfg.Permission.CacheTTL)
		} else {
			cache = permission.NewRedisCache(b.redis)
		}
	}
	engine.resolver = permission.NewResolver(b.store,
		permission.WithCache(cache, cfg.Permission.CacheTTL),
		permission.WithLogger(logger),
		permission.WithObserver(engine.observeCache),
	)

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = audit.NewStoreSink(b.store)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		Async:      cfg.Audit.Async,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Enrich:     engine.enrichAuditEntry,
	}, sink, engine.auditFailed)

	// -------- CREDENTIALS --------
	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}
	engine.passwordHash = ph

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		ResetTTL:      cfg.JWT.ResetTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		KeyID:         cfg.JWT.KeyID,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}
	engine.jwtManager = jm

	engine.mailer = b.mailer
	if engine.mailer == nil {
		engine.mailer = NewLogMailer(logger)
	}

	engine.initFlows()
	b.built = true

	return engine, nil
}
