package identity

import (
	"context"

	"github.com/goliatone/go-router"
)

var principalCtxKey = &contextKey{"principal"}
var sessionCtxKey = &contextKey{"session"}

type contextKey struct {
	name string
}

// Locals keys used by the middleware to share state with handlers on
// the same request.
const (
	PrincipalLocalsKey = "identity_principal"
	SessionLocalsKey   = "identity_session"
)

// WithPrincipal sets the Principal in the given context
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey, p)
}

// PrincipalFromContext finds the principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	raw, ok := ctx.Value(principalCtxKey).(Principal)
	return raw, ok
}

// WithSession sets the resolved session in the given context
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, session)
}

// SessionFromContext finds the session from the context.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	raw, ok := ctx.Value(sessionCtxKey).(*Session)
	return raw, ok
}

// CanFromContext is a convenience predicate over the context principal.
// A request with no resolved principal can do nothing.
func CanFromContext(ctx context.Context, capability string) bool {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return false
	}
	return Can(p, capability)
}

// GetRouterPrincipal extracts the principal from the router context.
func GetRouterPrincipal(ctx router.Context) (Principal, bool) {
	raw := ctx.Locals(PrincipalLocalsKey)
	if raw == nil {
		return nil, false
	}
	p, ok := raw.(Principal)
	return p, ok
}

// GetRouterSession extracts the resolved session from the router
// context; only present for authenticated requests.
func GetRouterSession(ctx router.Context) (*Session, bool) {
	raw := ctx.Locals(SessionLocalsKey)
	if raw == nil {
		return nil, false
	}
	session, ok := raw.(*Session)
	return session, ok
}
