package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/MrEthical07/goIdentity/permission"
)

type authResultContextKey struct{}

func AuthResultFromContext(ctx context.Context) (*goIdentity.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*goIdentity.AuthResult)
	return res, ok
}

// RequestContext copies the client IP and User-Agent into the request
// context so the engine can audit them. With trustProxy the first
// X-Forwarded-For hop wins over RemoteAddr.
func RequestContext(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := goIdentity.WithClientIP(r.Context(), ClientIP(r, trustProxy))
			ctx = goIdentity.WithUserAgent(ctx, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientIP returns the caller's address without the port.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Guard validates the bearer access token, rejects denylisted tokens and
// attaches the result and the request actor to the context.
func Guard(engine *goIdentity.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, http.StatusUnauthorized, goIdentity.ErrUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, http.StatusUnauthorized, goIdentity.ErrUnauthorized)
				return
			}

			res, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				if errors.Is(err, goIdentity.ErrCoordinatorUnavailable) {
					WriteError(w, http.StatusServiceUnavailable, goIdentity.ErrCoordinatorUnavailable)
					return
				}
				WriteError(w, http.StatusUnauthorized, goIdentity.ErrUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			ctx = goIdentity.WithActor(ctx, res.Actor())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission must run after [Guard]. It answers 403 unless the
// token's permissions grant (action, subject).
func RequirePermission(action permission.Action, subject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, ok := AuthResultFromContext(r.Context())
			if !ok {
				WriteError(w, http.StatusUnauthorized, goIdentity.ErrUnauthorized)
				return
			}
			if !res.Permissions.Can(action, subject) {
				WriteError(w, http.StatusForbidden, goIdentity.ErrPermissionDenied)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteError writes {"error": err} with status.
func WriteError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
