package identity

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterIdentityRoutes mounts the identity endpoints on the given
// router. The resolver middleware must already be installed upstream.
func RegisterIdentityRoutes[T any](app router.Router[T], opts ...IdentityControllerOption) {
	controller := NewIdentityController(opts...)

	app.Post(controller.Routes.Users,
		controller.guard(CapabilityCreateUser, controller.UserCreate)).
		SetName("users.post")

	app.Post(controller.Routes.Sessions,
		controller.guard(CapabilityCreateSession, controller.SessionCreate)).
		SetName("sessions.post")

	app.Delete(controller.Routes.Sessions,
		controller.guard(CapabilityReadSession, controller.SessionDestroy)).
		SetName("sessions.delete")

	app.Get(controller.Routes.Users+"/:username", controller.UserProfile).
		SetName("users.username.get")

	app.Patch(controller.Routes.Users+"/:username",
		controller.guard(CapabilityReadSession, controller.UserUpdate)).
		SetName("users.username.patch")

	app.Patch(controller.Routes.Activations+"/:token_id",
		controller.guard(CapabilityReadActivationToken, controller.ActivationUse)).
		SetName("activations.patch")

	app.Get(controller.Routes.CurrentUser,
		controller.guard(CapabilityReadSession, controller.UserShow)).
		SetName("user.get")
}

type IdentityControllerRoutes struct {
	Users       string
	Sessions    string
	Activations string
	CurrentUser string
}

type IdentityController struct {
	Logger       Logger
	Repo         RepositoryManager
	Auther       *RouteIdentity
	Activation   *Activation
	Routes       *IdentityControllerRoutes
	ErrorHandler router.ErrorHandler
}

type IdentityControllerOption func(*IdentityController) *IdentityController

func WithControllerRepo(repo RepositoryManager) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Repo = repo
		return c
	}
}

func WithControllerAuther(auther *RouteIdentity) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Auther = auther
		return c
	}
}

func WithControllerActivation(activation *Activation) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		c.Activation = activation
		return c
	}
}

func WithControllerLogger(logger Logger) IdentityControllerOption {
	return func(c *IdentityController) *IdentityController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

func NewIdentityController(opts ...IdentityControllerOption) *IdentityController {
	c := &IdentityController{
		Logger: defLogger{},
		Routes: &IdentityControllerRoutes{
			Users:       "/users",
			Sessions:    "/sessions",
			Activations: "/activations",
			CurrentUser: "/user",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in identity controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteIdentity in identity controller...")
	}

	if c.Activation == nil {
		panic("Missing Activation in identity controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return WriteError(ctx, err, c.Logger)
		}
	}

	return c
}

func (c *IdentityController) guard(capability string, handler router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		p, ok := GetRouterPrincipal(ctx)
		if !ok {
			return c.ErrorHandler(ctx, ErrAuthenticationFailed)
		}

		if err := Require(p, capability); err != nil {
			return c.ErrorHandler(ctx, err)
		}

		return handler(ctx)
	}
}

// UserCreate handles POST /users: register a user, issue their
// activation token, and send the activation email.
func (c *IdentityController) UserCreate(ctx router.Context) error {
	payload := new(RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, bindError(err))
	}

	handler := NewRegisterUserHandler(c.Repo, c.Activation)
	user, err := handler.Execute(ctx.Context(), *payload)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, user)
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Email,
			validation.Required,
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

// SessionCreate handles POST /sessions: authenticate and mint a new
// session, returning it with the cookie set.
func (c *IdentityController) SessionCreate(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithMetadata(map[string]any{
				metadataActionKey: "Fix the highlighted fields and try again",
			}))
	}

	session, err := c.Auther.Login(ctx, payload.Email, payload.Password)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, session)
}

// SessionDestroy handles DELETE /sessions: revoke the current session
// and clear the cookie.
func (c *IdentityController) SessionDestroy(ctx router.Context) error {
	session, ok := GetRouterSession(ctx)
	if !ok {
		return c.ErrorHandler(ctx, ErrAuthenticationFailed)
	}

	expired, err := c.Auther.Logout(ctx, session)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, expired)
}

// UserProfile handles GET /users/:username: return the named user's
// record. Any resolved principal, anonymous included, may look up a
// profile, so the route carries no capability guard.
func (c *IdentityController) UserProfile(ctx router.Context) error {
	if _, ok := GetRouterPrincipal(ctx); !ok {
		return c.ErrorHandler(ctx, ErrAuthenticationFailed)
	}

	user, err := c.Repo.Users().GetByUsername(ctx.Context(), ctx.Param("username", ""))
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

// UpdateUserRequest payload; nil fields are left untouched
type UpdateUserRequest struct {
	Username *string `json:"username" form:"username"`
	Email    *string `json:"email" form:"email"`
	Password *string `json:"password" form:"password"`
}

// Validate will run validation rules
func (r UpdateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Username,
			validation.NilOrNotEmpty,
			validation.Length(3, 30),
		),
		validation.Field(
			&r.Email,
			validation.NilOrNotEmpty,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&r.Password,
			validation.NilOrNotEmpty,
			validation.Length(8, 72),
		),
	)
}

// UserUpdate handles PATCH /users/:username: apply a partial update to
// the named user and return the updated record.
func (c *IdentityController) UserUpdate(ctx router.Context) error {
	payload := new(UpdateUserRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.ErrorHandler(ctx, bindError(err))
	}

	if err := payload.Validate(); err != nil {
		return c.ErrorHandler(ctx, goerrors.Wrap(err, goerrors.CategoryValidation, err.Error()).
			WithMetadata(map[string]any{
				metadataActionKey: "Fix the highlighted fields and try again",
			}))
	}

	user, err := c.Repo.Users().UpdateByUsername(ctx.Context(), ctx.Param("username", ""), UserChanges{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
	})
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

// ActivationUse handles PATCH /activations/:token_id: consume the
// token once and upgrade the user's capability set.
func (c *IdentityController) ActivationUse(ctx router.Context) error {
	raw := ctx.Param("token_id", "")

	tokenID, err := uuid.Parse(raw)
	if err != nil {
		// an unparseable id is indistinguishable from an unknown token
		return c.ErrorHandler(ctx, ErrActivationTokenNotFound)
	}

	user, err := c.Activation.Activate(ctx.Context(), tokenID)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

// UserShow handles GET /user: return the authenticated principal's
// record. Session renewal already happened in the resolver middleware.
func (c *IdentityController) UserShow(ctx router.Context) error {
	p, ok := GetRouterPrincipal(ctx)
	if !ok || p.IsAnonymous() {
		return c.ErrorHandler(ctx, ErrAuthenticationFailed)
	}

	id, err := uuid.Parse(p.ID())
	if err != nil {
		return c.ErrorHandler(ctx, ErrAuthenticationFailed)
	}

	user, err := c.Repo.Users().GetByUserID(ctx.Context(), id)
	if err != nil {
		return c.ErrorHandler(ctx, err)
	}

	return ctx.JSON(router.StatusOK, user)
}

func bindError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
		WithMetadata(map[string]any{
			metadataActionKey: "Check the request body format",
		})
}
