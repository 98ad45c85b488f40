package identity

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Activation orchestrates the one-time token flow: issuing tokens with
// the registration email, consuming them, and upgrading the user's
// capability set.
type Activation struct {
	repo   RepositoryManager
	mailer Mailer
	origin string
	logger Logger
}

type ActivationOption func(*Activation)

// WithActivationMailer sets the outbound notifier used for activation
// links. Without one, emails are skipped and logged.
func WithActivationMailer(mailer Mailer) ActivationOption {
	return func(a *Activation) {
		a.mailer = mailer
	}
}

// WithActivationOrigin sets the public origin used to build activation
// links.
func WithActivationOrigin(origin string) ActivationOption {
	return func(a *Activation) {
		if origin != "" {
			a.origin = origin
		}
	}
}

func NewActivation(repo RepositoryManager, opts ...ActivationOption) *Activation {
	a := &Activation{
		repo:   repo,
		origin: "http://localhost:3000",
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Activation) WithLogger(logger Logger) *Activation {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// CreateForUser issues a fresh token and mails the activation link.
func (a *Activation) CreateForUser(ctx context.Context, user *User) (*ActivationToken, error) {
	token, err := a.repo.ActivationTokens().Create(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	if err := a.SendEmailToUser(ctx, user, token); err != nil {
		return nil, err
	}

	return token, nil
}

// SendEmailToUser delivers the activation link through the configured
// notifier.
func (a *Activation) SendEmailToUser(ctx context.Context, user *User, token *ActivationToken) error {
	if a.mailer == nil {
		a.logger.Warn("no mailer configured, skipping activation email", "user_id", user.ID.String())
		return nil
	}

	subject := "Activate your account!"
	body := fmt.Sprintf(`Hello %s,

Click here to activate your account:

%s/register/activate/%s

Best regards,
The Team`, user.Username, a.origin, token.ID.String())

	if err := a.mailer.Send(ctx, user.Email, subject, body); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to send activation email")
	}

	return nil
}

// Activate consumes a usable token and upgrades its user. The token is
// marked used exactly once; a second call finds nothing usable and
// fails with NotFound before any user mutation.
func (a *Activation) Activate(ctx context.Context, tokenID uuid.UUID) (*User, error) {
	token, err := a.repo.ActivationTokens().FindUsableByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}

	if _, err := a.repo.ActivationTokens().MarkUsed(ctx, token.ID); err != nil {
		return nil, err
	}

	return a.ActivateUser(ctx, token.UserID)
}

// ActivateUser replaces the target user's capabilities with the
// activated baseline. The user must still hold read:activation_token;
// its absence signals "already activated" without a separate state
// flag. The check and the replacement run in one transaction so the
// transition is atomic per user row.
func (a *Activation) ActivateUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	var activated *User

	err := a.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := a.repo.Users().GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}

		if !user.HasFeature(CapabilityReadActivationToken) {
			return ErrCapabilityRequired
		}

		activated, err = a.repo.Users().SetFeaturesTx(ctx, tx, userID, ActivatedUserFeatures())
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user activation transaction failed")
	}

	return activated, nil
}
