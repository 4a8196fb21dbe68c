package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/middleware"
	"github.com/MrEthical07/goIdentity/permission"
)

// Options tunes the HTTP layer. Zero values pick the defaults below.
type Options struct {
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	// AuthRPS and AuthBurst bound anonymous /auth requests per client IP.
	AuthRPS   float64
	AuthBurst int
	// MaxClients caps the number of tracked client IPs.
	MaxClients int
	// MetricsHandler serves /metrics. Nil uses promhttp.Handler().
	MetricsHandler http.Handler
}

const (
	defaultAuthRPS    = 5
	defaultAuthBurst  = 20
	defaultMaxClients = 10000
	maxBodyBytes      = 64 << 10
)

type api struct {
	engine *goIdentity.Engine
	cookie goIdentity.CookieConfig
	logger *zap.Logger
}

// NewRouter mounts every identity endpoint on a chi router.
func NewRouter(engine *goIdentity.Engine, logger *zap.Logger, opts Options) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.AuthRPS <= 0 {
		opts.AuthRPS = defaultAuthRPS
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = defaultAuthBurst
	}
	if opts.MaxClients <= 0 {
		opts.MaxClients = defaultMaxClients
	}
	metricsHandler := opts.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	a := &api{
		engine: engine,
		cookie: engine.Config().Cookie,
		logger: logger,
	}
	limiter := rate.NewIPLimiter(opts.AuthRPS, opts.AuthBurst, opts.MaxClients, 10*time.Minute)

	r := chi.NewRouter()
	r.Use(metricsMiddleware)
	r.Use(requestLogger(logger))
	r.Use(middleware.RequestContext(opts.TrustProxy))

	r.Get("/healthz", a.healthz)
	r.Handle("/metrics", metricsHandler)
	r.Get("/.well-known/jwks.json", a.jwks)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(ipRateLimit(limiter, opts.TrustProxy))
			r.Post("/login", a.login)
			r.Post("/refresh", a.refresh)
			r.Post("/forgot-password", a.forgotPassword)
			r.Post("/reset-password", a.resetPassword)
			r.Post("/register", a.register)
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))
			r.Post("/logout", a.logout)
			r.Get("/me", a.me)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(engine))

		r.With(middleware.RequirePermission(permission.ActionUpdate, permission.SubjectUserSelf)).
			Patch("/users/me", a.updateSelf)
		r.With(middleware.RequirePermission(permission.ActionManage, permission.SubjectUser)).
			Patch("/users/{id}/roles", a.updateRoles)
		r.With(middleware.RequirePermission(permission.ActionDelete, permission.SubjectUser)).
			Delete("/users/{id}", a.deleteUser)
		r.With(middleware.RequirePermission(permission.ActionRead, permission.SubjectActivityLog)).
			Get("/activity-logs", a.activityLogs)
	})

	return r
}

func ipRateLimit(l *rate.IPLimiter, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(middleware.ClientIP(r, trustProxy)) {
				middleware.WriteError(w, http.StatusTooManyRequests, goIdentity.ErrRateLimited)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type validatable interface {
	Validate() error
}

// decode reads a JSON body into dst and runs its validation rules.
func decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	if err := dst.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "validation failed", "fields": err})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeAuthError hides the cause of authentication failures.
func (a *api) writeAuthError(w http.ResponseWriter, err error) {
	a.writeError(w, goIdentity.PublicError(err))
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	public := err
	switch {
	case errors.Is(err, goIdentity.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, goIdentity.ErrLockConflict), errors.Is(err, goIdentity.ErrAccountExists):
		status = http.StatusConflict
	case errors.Is(err, goIdentity.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, goIdentity.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, goIdentity.ErrPasswordPolicy),
		errors.Is(err, goIdentity.ErrResetTokenInvalid),
		errors.Is(err, goIdentity.ErrInvalidRole):
		status = http.StatusBadRequest
	case errors.Is(err, goIdentity.ErrUserNotFound), errors.Is(err, goIdentity.ErrFeatureDisabled):
		status = http.StatusNotFound
	case errors.Is(err, goIdentity.ErrCoordinatorUnavailable), errors.Is(err, goIdentity.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		public = errors.New("service unavailable")
	default:
		public = errors.New("internal error")
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("goIdentity: request failed", zap.Error(err))
	}
	middleware.WriteError(w, status, rootSentinel(public))
}

// rootSentinel strips wrapped causes so clients only see the sentinel text.
func rootSentinel(err error) error {
	for _, s := range []error{
		goIdentity.ErrPasswordPolicy,
		goIdentity.ErrResetTokenInvalid,
		goIdentity.ErrInvalidRole,
		goIdentity.ErrUserNotFound,
	} {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}
