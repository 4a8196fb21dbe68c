package goIdentity

import (
	"context"

	"github.com/MrEthical07/goIdentity/permission"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type actorContextKey struct{}

// Actor is the identity a request acts as. It is the audit trail's source
// of actor id and snapshot.
type Actor struct {
	ID          string
	Email       string
	Roles       []string
	Permissions permission.Set
	// TokenID is the access token jti the actor authenticated with.
	TokenID string
}

// SystemActor stands in for unauthenticated and background operations.
var SystemActor = Actor{Email: "system", Roles: []string{"SYSTEM"}}

// IsSystem reports whether a is the synthetic system actor.
func (a Actor) IsSystem() bool {
	return a.ID == ""
}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it
// for per-IP throttles and the audit request context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. The device label
// of new refresh tokens is derived from it.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithActor attaches the authenticated actor to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the request's actor, or SystemActor when none
// was attached.
func ActorFromContext(ctx context.Context) Actor {
	if ctx != nil {
		if actor, ok := ctx.Value(actorContextKey{}).(Actor); ok {
			return actor
		}
	}
	return Actor{Email: SystemActor.Email, Roles: append([]string(nil), SystemActor.Roles...)}
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}
