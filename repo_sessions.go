package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultSessionTTL is the sliding session lifetime. It is exported so
// callers computing cookie lifetimes share the same value.
const DefaultSessionTTL = 30 * 24 * time.Hour

// sessionTokenBytes is the entropy budget of a bearer token. 48 random
// bytes hex encode to 96 characters; Create does not retry on a token
// conflict because at that size one never happens with a working
// entropy source.
const sessionTokenBytes = 48

type Sessions interface {
	Create(ctx context.Context, userID uuid.UUID) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Session, error)
	FindByValidToken(ctx context.Context, token string) (*Session, error)
	Renew(ctx context.Context, id uuid.UUID) (*Session, error)
	ExpireByID(ctx context.Context, id uuid.UUID) (*Session, error)
	TTL() time.Duration
}

type sessions struct {
	db  *bun.DB
	ttl time.Duration
	now Clock
}

var _ Sessions = (*sessions)(nil)

type SessionsOption func(*sessions)

// WithSessionTTL threads the session lifetime in at construction. It is
// deliberately not a mutable package global.
func WithSessionTTL(ttl time.Duration) SessionsOption {
	return func(s *sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionsClock injects a custom clock (useful for tests).
func WithSessionsClock(clock Clock) SessionsOption {
	return func(s *sessions) {
		if clock != nil {
			s.now = clock
		}
	}
}

func NewSessionsRepository(db *bun.DB, opts ...SessionsOption) Sessions {
	repo := &sessions{
		db:  db,
		ttl: DefaultSessionTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (s *sessions) TTL() time.Duration {
	return s.ttl
}

func (s *sessions) Create(ctx context.Context, userID uuid.UUID) (*Session, error) {
	return s.CreateTx(ctx, s.db, userID)
}

func (s *sessions) CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate session token")
	}

	now := s.now()
	record := &Session{
		ID:        uuid.New(),
		UserID:    userID,
		Token:     token,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		// a token collision trips the unique index; with 48 bytes of
		// entropy that means the generator is broken, so fail loudly
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist session")
	}

	return record, nil
}

func (s *sessions) FindByValidToken(ctx context.Context, token string) (*Session, error) {
	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Where("?TableAlias.expires_at > ?", s.now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			// absent, expired, and revoked all collapse into the same
			// signal to avoid an expiry oracle
			return nil, ErrAuthenticationFailed
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up session")
	}

	return record, nil
}

func (s *sessions) Renew(ctx context.Context, id uuid.UUID) (*Session, error) {
	now := s.now()
	return s.touch(ctx, id, now.Add(s.ttl), now)
}

func (s *sessions) ExpireByID(ctx context.Context, id uuid.UUID) (*Session, error) {
	now := s.now()
	return s.touch(ctx, id, now.Add(-time.Hour*24*365), now)
}

// touch rewrites expires_at and bumps updated_at; the token value is
// never changed after creation.
func (s *sessions) touch(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) (*Session, error) {
	res, err := s.db.NewUpdate().
		Model((*Session)(nil)).
		Set("expires_at = ?", expiresAt).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update session expiry")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrAuthenticationFailed
	}

	record := &Session{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload session")
	}

	return record, nil
}

func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
