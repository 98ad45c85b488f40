package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRouteIdentityLoginSetsCookie(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")

	auther := identity.NewHTTPIdentity(newTestAuthenticator(t, repo), repo.Sessions())

	var cookie *router.Cookie
	ctx := &MockContext{}
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).
		Run(func(args mock.Arguments) {
			cookie = args.Get(0).(*router.Cookie)
		}).
		Return()

	session, err := auther.Login(ctx, "pepe@example.com", "secret-password")
	require.NoError(t, err)
	require.NotNil(t, session)

	require.NotNil(t, cookie)
	assert.Equal(t, identity.SessionCookieName, cookie.Name)
	assert.Equal(t, session.Token, cookie.Value)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HTTPOnly)
	assert.Equal(t, "Lax", cookie.SameSite)
	assert.False(t, cookie.Secure, "secure is opt-in")
	assert.True(t, cookie.Expires.After(time.Now()))
}

func TestRouteIdentityLoginSecureCookies(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")

	auther := identity.NewHTTPIdentity(newTestAuthenticator(t, repo), repo.Sessions(),
		identity.WithSecureCookies(true),
	)

	var cookie *router.Cookie
	ctx := &MockContext{}
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).
		Run(func(args mock.Arguments) {
			cookie = args.Get(0).(*router.Cookie)
		}).
		Return()

	_, err := auther.Login(ctx, "pepe@example.com", "secret-password")
	require.NoError(t, err)
	require.NotNil(t, cookie)
	assert.True(t, cookie.Secure)
}

func TestRouteIdentityLoginBadCredentials(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")

	auther := identity.NewHTTPIdentity(newTestAuthenticator(t, repo), repo.Sessions())

	ctx := &MockContext{}
	ctx.On("Context").Return(context.Background())

	_, err := auther.Login(ctx, "pepe@example.com", "wrong-password")
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
	ctx.AssertNotCalled(t, "Cookie", mock.Anything)
}

func TestRouteIdentityLogout(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	session, err := repo.Sessions().Create(context.Background(), user.ID)
	require.NoError(t, err)

	auther := identity.NewHTTPIdentity(newTestAuthenticator(t, repo), repo.Sessions())

	var cookie *router.Cookie
	ctx := &MockContext{}
	ctx.On("Context").Return(context.Background())
	ctx.On("Cookie", mock.Anything).
		Run(func(args mock.Arguments) {
			cookie = args.Get(0).(*router.Cookie)
		}).
		Return()

	expired, err := auther.Logout(ctx, session)
	require.NoError(t, err)
	assert.False(t, expired.Active(clock.Now()))

	require.NotNil(t, cookie)
	assert.Equal(t, "invalid", cookie.Value)
	assert.True(t, cookie.Expires.Before(time.Now()))

	_, err = repo.Sessions().FindByValidToken(context.Background(), session.Token)
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
}

func TestRouteIdentityCookieDuration(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	auther := identity.NewHTTPIdentity(newTestAuthenticator(t, repo), repo.Sessions())
	assert.Equal(t, identity.DefaultSessionTTL, auther.CookieDuration())
}
