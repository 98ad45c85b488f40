package identity

import (
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// ResolverConfig defines the configuration for the request identity
// middleware.
type ResolverConfig struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// Sessions resolves and renews bearer tokens
	Sessions Sessions

	// Users resolves the session's user record
	Users Users

	// CookieName overrides the session cookie name
	CookieName string

	// Secure marks the cleared cookie Secure, matching production
	// cookie attributes
	Secure bool

	// DisableCookieRefresh stops the middleware from re-issuing the
	// cookie after each renewal; left unset, client and store expire
	// together
	DisableCookieRefresh bool

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// Logger overrides the default logger
	Logger Logger
}

func resolverConfigDefault(config ...ResolverConfig) ResolverConfig {
	cfg := ResolverConfig{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.CookieName == "" {
		cfg.CookieName = SessionCookieName
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, err, cfg.Logger)
		}
	}

	return cfg
}

// ResolvePrincipal returns the request identity middleware. With a
// valid bearer cookie it renews the session and attaches the user as
// principal; with no cookie it attaches the anonymous principal; with
// an invalid cookie it fails the request and tells the client to drop
// the cookie. Handlers downstream read the principal through
// GetRouterPrincipal or PrincipalFromContext.
func ResolvePrincipal(config ...ResolverConfig) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := resolverConfigDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token := ctx.Cookies(cfg.CookieName)
			if token == "" || token == sessionCookieSentinel {
				attachPrincipal(ctx, AnonymousPrincipal(), nil)
				return ctx.Next()
			}

			session, err := cfg.Sessions.FindByValidToken(ctx.Context(), token)
			if err != nil {
				clearSessionCookie(ctx, cfg.Secure)
				return cfg.ErrorHandler(ctx, ErrAuthenticationFailed)
			}

			// sliding window: every successful use pushes expiry forward
			session, err = cfg.Sessions.Renew(ctx.Context(), session.ID)
			if err != nil {
				clearSessionCookie(ctx, cfg.Secure)
				return cfg.ErrorHandler(ctx, err)
			}

			user, err := cfg.Users.GetByUserID(ctx.Context(), session.UserID)
			if err != nil {
				clearSessionCookie(ctx, cfg.Secure)
				return cfg.ErrorHandler(ctx, ErrAuthenticationFailed)
			}

			if !cfg.DisableCookieRefresh {
				ctx.Cookie(&router.Cookie{
					Name:     cfg.CookieName,
					Value:    session.Token,
					Path:     "/",
					Expires:  session.ExpiresAt,
					HTTPOnly: true,
					Secure:   cfg.Secure,
					SameSite: "Lax",
				})
			}

			attachPrincipal(ctx, UserPrincipal(user), session)
			return ctx.Next()
		}
	}
}

// RequireCapability guards a handler chain: the resolved principal must
// hold the capability or the request fails with a capability-agnostic
// Forbidden error.
func RequireCapability(capability string, config ...ResolverConfig) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := resolverConfigDefault(config...)

		return func(ctx router.Context) error {
			p, ok := GetRouterPrincipal(ctx)
			if !ok {
				return cfg.ErrorHandler(ctx, ErrAuthenticationFailed)
			}

			if err := Require(p, capability); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return ctx.Next()
		}
	}
}

func attachPrincipal(ctx router.Context, p Principal, session *Session) {
	ctx.Locals(PrincipalLocalsKey, p)

	reqCtx := WithPrincipal(ctx.Context(), p)
	if session != nil {
		ctx.Locals(SessionLocalsKey, session)
		reqCtx = WithSession(reqCtx, session)
	}
	ctx.SetContext(reqCtx)
}

// WriteError is the boundary mapper: it collapses internal variants
// into the public envelope and logs causes that must never reach the
// caller.
func WriteError(ctx router.Context, err error, logger ...Logger) error {
	l := Logger(defLogger{})
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}

	response, cause := MapErrorToResponse(err)
	if cause != nil {
		l.Error("request failed with internal error",
			"error", cause,
			"response", print.MaybePrettyJSON(response),
		)
	}

	return ctx.JSON(response.StatusCode, response)
}
