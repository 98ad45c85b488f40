package identity

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultActivationTokenTTL is the short window a freshly issued
// activation token stays usable.
const DefaultActivationTokenTTL = 15 * time.Minute

type ActivationTokens interface {
	Create(ctx context.Context, userID uuid.UUID) (*ActivationToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ActivationToken, error)
	FindUsableByID(ctx context.Context, id uuid.UUID) (*ActivationToken, error)
	MarkUsed(ctx context.Context, id uuid.UUID) (*ActivationToken, error)
	MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ActivationToken, error)
	TTL() time.Duration
}

type activationTokens struct {
	db  *bun.DB
	ttl time.Duration
	now Clock
}

var _ ActivationTokens = (*activationTokens)(nil)

type ActivationTokensOption func(*activationTokens)

// WithActivationTokenTTL threads the token lifetime in at construction.
func WithActivationTokenTTL(ttl time.Duration) ActivationTokensOption {
	return func(a *activationTokens) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithActivationTokensClock injects a custom clock (useful for tests).
func WithActivationTokensClock(clock Clock) ActivationTokensOption {
	return func(a *activationTokens) {
		if clock != nil {
			a.now = clock
		}
	}
}

func NewActivationTokensRepository(db *bun.DB, opts ...ActivationTokensOption) ActivationTokens {
	repo := &activationTokens{
		db:  db,
		ttl: DefaultActivationTokenTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *activationTokens) TTL() time.Duration {
	return a.ttl
}

func (a *activationTokens) Create(ctx context.Context, userID uuid.UUID) (*ActivationToken, error) {
	return a.CreateTx(ctx, a.db, userID)
}

func (a *activationTokens) CreateTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) (*ActivationToken, error) {
	now := a.now()
	record := &ActivationToken{
		ID:        uuid.New(),
		UserID:    userID,
		ExpiresAt: now.Add(a.ttl),
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist activation token")
	}

	return record, nil
}

// FindUsableByID selects a row matching id AND usable in one query.
// "does not exist", "expired", and "already used" are deliberately
// conflated into one outward signal so token state never leaks to an
// unauthenticated caller.
func (a *activationTokens) FindUsableByID(ctx context.Context, id uuid.UUID) (*ActivationToken, error) {
	record := &ActivationToken{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Where("?TableAlias.used_at IS NULL").
		Where("?TableAlias.expires_at > ?", a.now()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrActivationTokenNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up activation token")
	}

	return record, nil
}

func (a *activationTokens) MarkUsed(ctx context.Context, id uuid.UUID) (*ActivationToken, error) {
	return a.MarkUsedTx(ctx, a.db, id)
}

func (a *activationTokens) MarkUsedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ActivationToken, error) {
	now := a.now()
	res, err := tx.NewUpdate().
		Model((*ActivationToken)(nil)).
		Set("used_at = ?", now).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark activation token used")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrActivationTokenNotFound
	}

	record := &ActivationToken{}
	err = tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reload activation token")
	}

	return record, nil
}
