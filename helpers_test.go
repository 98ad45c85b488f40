package identity_test

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"
)

// testClock is a manually advanced clock so expiry scenarios never
// sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(start time.Time) *testClock {
	return &testClock{now: start}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	script, err := identity.GetMigrationsFS().ReadFile("data/sql/migrations/00001_identity.up.sql")
	require.NoError(t, err)

	for _, stmt := range strings.Split(string(script), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		_, err = bunDB.Exec(stmt)
		require.NoError(t, err)
	}

	t.Cleanup(func() {
		_ = bunDB.Close()
		_ = sqldb.Close()
	})

	return bunDB
}

// newTestManager wires all repositories over the shared test database
// with a cheap hasher and the injected clock.
func newTestManager(t *testing.T, db *bun.DB, clock *testClock) identity.RepositoryManager {
	t.Helper()

	return identity.NewRepositoryManager(db,
		identity.WithManagerUsers(identity.NewUsersRepository(db,
			identity.WithUsersHasher(identity.NewHasher(bcrypt.MinCost)),
			identity.WithUsersClock(clock.Now),
		)),
		identity.WithManagerSessions(identity.NewSessionsRepository(db,
			identity.WithSessionsClock(clock.Now),
		)),
		identity.WithManagerActivationTokens(identity.NewActivationTokensRepository(db,
			identity.WithActivationTokensClock(clock.Now),
		)),
	)
}

func registerTestUser(t *testing.T, repo identity.RepositoryManager, username, email, password string) *identity.User {
	t.Helper()

	user, err := repo.Users().Register(context.Background(), identity.RegisterUserInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}
