package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username  string `json:"username" form:"username"`
	Email     string `json:"email" form:"email"`
	Password  string `json:"password" form:"password"`
	UseHashid bool   `json:"-" form:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(
			&e.Username,
			validation.Required,
			validation.Length(3, 30),
		),
		validation.Field(
			&e.Email,
			validation.Required,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&e.Password,
			validation.Required,
			validation.Length(8, 72),
		),
	)
}

// RegisterUserHandler creates the user and their activation token in
// one transaction, then sends the activation email.
type RegisterUserHandler struct {
	repo       RepositoryManager
	activation *Activation
}

func NewRegisterUserHandler(repo RepositoryManager, activation *Activation) *RegisterUserHandler {
	return &RegisterUserHandler{repo: repo, activation: activation}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithMetadata(map[string]any{
				metadataActionKey: "Fix the highlighted fields and try again",
			})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	input := RegisterUserInput{
		Username: event.Username,
		Email:    event.Email,
		Password: event.Password,
	}

	if event.UseHashid {
		if id, err := hashid.NewUUID(strings.ToLower(event.Email)); err == nil {
			input.ID = id
		}
	}

	var user *User
	var token *ActivationToken

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if user, err = h.repo.Users().RegisterTx(ctx, tx, input); err != nil {
			return err
		}

		token, err = h.repo.ActivationTokens().CreateTx(ctx, tx, user.ID)
		return err
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	if h.activation != nil {
		if err := h.activation.SendEmailToUser(ctx, user, token); err != nil {
			return nil, err
		}
	}

	return user, nil
}
