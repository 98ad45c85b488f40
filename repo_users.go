package identity

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RegisterUserInput carries the fields needed to create a user. ID is
// optional; uuid.Nil selects a random identifier.
type RegisterUserInput struct {
	ID       uuid.UUID
	Username string
	Email    string
	Password string
}

// UserChanges is a partial update: nil fields are untouched, non nil
// fields always replace, even with an identical value.
type UserChanges struct {
	Username *string
	Email    *string
	Password *string
}

type Users interface {
	repository.Repository[*User]

	Register(ctx context.Context, input RegisterUserInput) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, input RegisterUserInput) (*User, error)

	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByUserID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)

	UpdateByUsername(ctx context.Context, username string, changes UserChanges) (*User, error)

	SetFeatures(ctx context.Context, id uuid.UUID, features CapabilitySet) (*User, error)
	SetFeaturesTx(ctx context.Context, tx bun.IDB, id uuid.UUID, features CapabilitySet) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db     *bun.DB
	hasher Hasher
	now    Clock
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

type UsersOption func(*users)

// WithUsersHasher overrides the credential hasher, tests pass a low
// cost one to keep the suite fast.
func WithUsersHasher(h Hasher) UsersOption {
	return func(u *users) {
		u.hasher = h
	}
}

// WithUsersClock injects a custom clock (useful for tests).
func WithUsersClock(clock Clock) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		hasher:     NewHasher(0),
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Register(ctx context.Context, input RegisterUserInput) (*User, error) {
	return a.RegisterTx(ctx, a.db, input)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, input RegisterUserInput) (*User, error) {
	if err := a.validateUniqueEmail(ctx, tx, input.Email, uuid.Nil); err != nil {
		return nil, err
	}

	if err := a.validateUniqueUsername(ctx, tx, input.Username, uuid.Nil); err != nil {
		return nil, err
	}

	hash, err := a.hasher.Hash(input.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := a.now()
	record := &User{
		ID:           input.ID,
		Username:     input.Username,
		Email:        strings.ToLower(input.Email),
		PasswordHash: hash,
		Features:     DefaultUserFeatures(),
		CreatedAt:    &now,
		UpdatedAt:    &now,
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		// the unique indexes close the race the pre-checks cannot
		return nil, mapUserUniqueViolation(err)
	}

	return record, nil
}

func (a *users) GetByUsername(ctx context.Context, username string) (*User, error) {
	return a.getByColumnFold(ctx, a.db, "username", username)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.getByColumnFold(ctx, a.db, "email", email)
}

func (a *users) GetByUserID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.GetByUserIDTx(ctx, a.db, id)
}

func (a *users) GetByUserIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) getByColumnFold(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("LOWER(?TableAlias."+column+") = LOWER(?)", value).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load user")
	}

	return record, nil
}

func (a *users) UpdateByUsername(ctx context.Context, username string, changes UserChanges) (*User, error) {
	record, err := a.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	if changes.Email != nil {
		if err := a.validateUniqueEmail(ctx, a.db, *changes.Email, record.ID); err != nil {
			return nil, err
		}
		record.Email = strings.ToLower(*changes.Email)
	}

	if changes.Username != nil {
		if err := a.validateUniqueUsername(ctx, a.db, *changes.Username, record.ID); err != nil {
			return nil, err
		}
		record.Username = *changes.Username
	}

	if changes.Password != nil {
		hash, err := a.hasher.Hash(*changes.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return nil, richErr
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		record.PasswordHash = hash
	}

	now := a.now()
	record.UpdatedAt = &now

	if _, err := a.db.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
		return nil, mapUserUniqueViolation(err)
	}

	return record, nil
}

func (a *users) SetFeatures(ctx context.Context, id uuid.UUID, features CapabilitySet) (*User, error) {
	return a.SetFeaturesTx(ctx, a.db, id, features)
}

func (a *users) SetFeaturesTx(ctx context.Context, tx bun.IDB, id uuid.UUID, features CapabilitySet) (*User, error) {
	now := a.now()
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("features = ?", features).
		Set("updated_at = ?", now).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)

	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to replace user capabilities")
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, ErrUserNotFound
	}

	return a.GetByUserIDTx(ctx, tx, id)
}

func (a *users) validateUniqueEmail(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) error {
	return a.validateUniqueColumn(ctx, tx, "email", email, exclude, ErrEmailTaken)
}

func (a *users) validateUniqueUsername(ctx context.Context, tx bun.IDB, username string, exclude uuid.UUID) error {
	return a.validateUniqueColumn(ctx, tx, "username", username, exclude, ErrUsernameTaken)
}

func (a *users) validateUniqueColumn(ctx context.Context, tx bun.IDB, column, value string, exclude uuid.UUID, taken error) error {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Where("LOWER(?TableAlias."+column+") = LOWER(?)", value)

	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check "+column+" uniqueness")
	}

	if exists {
		return taken
	}

	return nil
}

// mapUserUniqueViolation folds driver level unique constraint failures
// into the same field specific errors the application level pre-checks
// produce, so concurrent registrations lose cleanly.
func mapUserUniqueViolation(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value") {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist user")
	}

	if strings.Contains(msg, "email") {
		return ErrEmailTaken
	}

	if strings.Contains(msg, "username") {
		return ErrUsernameTaken
	}

	return goerrors.Wrap(err, goerrors.CategoryConflict, "user violates a uniqueness constraint")
}
