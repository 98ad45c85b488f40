package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionsCreate(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")

	session, err := repo.Sessions().Create(context.Background(), user.ID)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, session.ID)
	assert.Equal(t, user.ID, session.UserID)
	assert.Len(t, session.Token, 96, "48 random bytes hex encoded")
	assert.WithinDuration(t, clock.Now().Add(identity.DefaultSessionTTL), session.ExpiresAt, time.Second)
}

func TestSessionsTokensAreUnique(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	ctx := context.Background()

	first, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)
	second, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Token, second.Token)
}

func TestSessionsFindByValidToken(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	ctx := context.Background()

	session, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)

	found, err := repo.Sessions().FindByValidToken(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = repo.Sessions().FindByValidToken(ctx, "no-such-token")
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
}

func TestSessionsExpiredTokenIsInvalid(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	ctx := context.Background()

	session, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)

	clock.Advance(identity.DefaultSessionTTL + time.Second)

	_, err = repo.Sessions().FindByValidToken(ctx, session.Token)
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed, "expired and absent look the same")
}

func TestSessionsRenewSlidesTheWindow(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	ctx := context.Background()

	session, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)

	clock.Advance(10 * 24 * time.Hour)

	renewed, err := repo.Sessions().Renew(ctx, session.ID)
	require.NoError(t, err)

	assert.Equal(t, session.Token, renewed.Token, "the token never changes after creation")
	assert.WithinDuration(t, clock.Now().Add(identity.DefaultSessionTTL), renewed.ExpiresAt, time.Second)
	assert.True(t, renewed.ExpiresAt.After(session.ExpiresAt))

	_, err = repo.Sessions().Renew(ctx, uuid.New())
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)
}

func TestSessionsExpireByIDRevokes(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	repo := newTestManager(t, db, clock)

	user := registerTestUser(t, repo, "pepe", "pepe@example.com", "secret-password")
	ctx := context.Background()

	session, err := repo.Sessions().Create(ctx, user.ID)
	require.NoError(t, err)

	expired, err := repo.Sessions().ExpireByID(ctx, session.ID)
	require.NoError(t, err)

	assert.True(t, expired.ExpiresAt.Before(clock.Now()))
	assert.False(t, expired.Active(clock.Now()))

	// the row survives for auditing, the token just stops working
	_, err = repo.Sessions().FindByValidToken(ctx, session.Token)
	assert.ErrorIs(t, err, identity.ErrAuthenticationFailed)

	count, err := db.NewSelect().Model((*identity.Session)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSessionsCustomTTL(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	clock := newTestClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	sessions := identity.NewSessionsRepository(db,
		identity.WithSessionTTL(time.Hour),
		identity.WithSessionsClock(clock.Now),
	)

	assert.Equal(t, time.Hour, sessions.TTL())

	user := registerTestUser(t, newTestManager(t, db, clock), "pepe", "pepe@example.com", "secret-password")

	session, err := sessions.Create(context.Background(), user.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, clock.Now().Add(time.Hour), session.ExpiresAt, time.Second)
}
