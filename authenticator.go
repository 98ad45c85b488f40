package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// Authenticator verifies email/password pairs against the user
// directory and the credential hasher.
type Authenticator struct {
	users  Users
	hasher Hasher
	logger Logger
}

type AuthenticatorOption func(*Authenticator)

// WithAuthenticatorHasher overrides the credential hasher.
func WithAuthenticatorHasher(h Hasher) AuthenticatorOption {
	return func(a *Authenticator) {
		a.hasher = h
	}
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users Users, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		users:  users,
		hasher: NewHasher(0),
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Authenticator) WithLogger(logger Logger) *Authenticator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Authenticate looks the user up by email and validates the password.
// Unknown email and wrong password both return ErrAuthenticationFailed
// so the response never tells a caller which accounts exist. On success
// the full user record is returned and the caller is responsible for
// minting a session.
func (a *Authenticator) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := a.users.GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrAuthenticationFailed
		}
		a.logger.Error("authenticate lookup error", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during authentication")
	}

	if err := a.hasher.Compare(password, user.PasswordHash); err != nil {
		return nil, ErrAuthenticationFailed
	}

	return user, nil
}
