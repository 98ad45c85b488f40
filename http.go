package identity

import (
	"time"

	"github.com/goliatone/go-router"
)

// SessionCookieName is the cookie carrying the opaque bearer token.
const SessionCookieName = "session_id"

// sessionCookieSentinel replaces the token value when the client is
// told to drop its cookie.
const sessionCookieSentinel = "invalid"

// RouteIdentity glues the authenticator and session store to the HTTP
// layer: it mints sessions on login, revokes them on logout, and owns
// the session cookie in both directions.
type RouteIdentity struct {
	auth     *Authenticator
	sessions Sessions
	secure   bool
	Logger   Logger
}

type RouteIdentityOption func(*RouteIdentity)

// WithSecureCookies marks cookies Secure; enable in production.
func WithSecureCookies(secure bool) RouteIdentityOption {
	return func(r *RouteIdentity) {
		r.secure = secure
	}
}

func NewHTTPIdentity(auth *Authenticator, sessions Sessions, opts ...RouteIdentityOption) *RouteIdentity {
	r := &RouteIdentity{
		auth:     auth,
		sessions: sessions,
		Logger:   defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// CookieDuration is the session TTL, exposed for callers computing
// cookie lifetimes.
func (a *RouteIdentity) CookieDuration() time.Duration {
	return a.sessions.TTL()
}

// Login authenticates the credentials, mints a session, and hands the
// token to the client as a cookie.
func (a *RouteIdentity) Login(ctx router.Context, email, password string) (*Session, error) {
	user, err := a.auth.Authenticate(ctx.Context(), email, password)
	if err != nil {
		return nil, err
	}

	session, err := a.sessions.Create(ctx.Context(), user.ID)
	if err != nil {
		a.Logger.Error("login session create error", "error", err)
		return nil, err
	}

	a.SetSessionCookie(ctx, session)
	return session, nil
}

// Logout revokes the session and instructs the client to drop its
// cookie.
func (a *RouteIdentity) Logout(ctx router.Context, session *Session) (*Session, error) {
	expired, err := a.sessions.ExpireByID(ctx.Context(), session.ID)
	if err != nil {
		return nil, err
	}

	a.ClearSessionCookie(ctx)
	return expired, nil
}

// SetSessionCookie writes the bearer token cookie. The lifetime mirrors
// the session TTL so cookie and row expire together.
func (a *RouteIdentity) SetSessionCookie(c router.Context, session *Session) {
	c.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  time.Now().Add(a.sessions.TTL()),
		HTTPOnly: true,
		Secure:   a.secure,
		SameSite: "Lax",
	})
}

// ClearSessionCookie overwrites the cookie with a sentinel value that
// is already expired.
func (a *RouteIdentity) ClearSessionCookie(c router.Context) {
	clearSessionCookie(c, a.secure)
}

func clearSessionCookie(c router.Context, secure bool) {
	c.Cookie(&router.Cookie{
		Name:     SessionCookieName,
		Value:    sessionCookieSentinel,
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * 24 * 365),
		HTTPOnly: true,
		Secure:   secure,
		SameSite: "Lax",
	})
}
