package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	textCodeCapabilityRequired   = "CAPABILITY_REQUIRED"
	textCodeUserNotFound         = "USER_NOT_FOUND"
	textCodeTokenNotFound        = "ACTIVATION_TOKEN_NOT_FOUND"
	textCodeEmailTaken           = "EMAIL_ALREADY_EXISTS"
	textCodeUsernameTaken        = "USERNAME_ALREADY_EXISTS"
	textCodePasswordMismatch     = "PASSWORD_MISMATCH"
	textCodeEmptyPassword        = "EMPTY_PASSWORD"
)

// metadataActionKey carries the user facing corrective action through
// error metadata so the boundary mapper can surface it.
const metadataActionKey = "action"

// ErrAuthenticationFailed is the single error for every authentication
// failure: unknown email, wrong password, and invalid or expired session
// tokens all collapse into this value so callers cannot tell which
// check rejected them.
var ErrAuthenticationFailed = goerrors.New("Authentication failed", goerrors.CategoryAuth).
	WithTextCode(textCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized).
	WithMetadata(map[string]any{
		metadataActionKey: "Verify if the email or password are correct",
	})

// ErrCapabilityRequired rejects a principal that lacks the capability a
// guard demands. The message never names the missing capability.
var ErrCapabilityRequired = goerrors.New("You don't have permission to perform this action", goerrors.CategoryAuthz).
	WithTextCode(textCodeCapabilityRequired).
	WithCode(goerrors.CodeForbidden).
	WithMetadata(map[string]any{
		metadataActionKey: "Check if your account has the required access",
	})

// ErrUserNotFound is returned by user directory point lookups.
var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeUserNotFound).
	WithCode(goerrors.CodeNotFound).
	WithMetadata(map[string]any{
		metadataActionKey: "Check the identifier and try again",
	})

// ErrActivationTokenNotFound covers missing, expired, and already used
// activation tokens alike. The three states are deliberately
// indistinguishable to unauthenticated callers.
var ErrActivationTokenNotFound = goerrors.New("Activation token not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeTokenNotFound).
	WithCode(goerrors.CodeNotFound).
	WithMetadata(map[string]any{
		metadataActionKey: "Request a new activation link",
	})

// ErrEmailTaken is returned when a create or update collides with an
// existing email, compared case-insensitively.
var ErrEmailTaken = goerrors.New("Email already exists", goerrors.CategoryValidation).
	WithTextCode(textCodeEmailTaken).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{
		metadataActionKey: "Try a different email",
		"field":           "email",
	})

// ErrUsernameTaken is the username counterpart of ErrEmailTaken.
var ErrUsernameTaken = goerrors.New("Username already exists", goerrors.CategoryValidation).
	WithTextCode(textCodeUsernameTaken).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{
		metadataActionKey: "Try a different username",
		"field":           "username",
	})

// ErrMismatchedHashAndPassword is the internal signal from the credential
// hasher. It never crosses the boundary directly, the authenticator folds
// it into ErrAuthenticationFailed.
var ErrMismatchedHashAndPassword = goerrors.New("password does not match stored hash", goerrors.CategoryAuth).
	WithTextCode(textCodePasswordMismatch).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyPassword rejects empty secrets before they reach bcrypt.
var ErrNoEmptyPassword = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(textCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest).
	WithMetadata(map[string]any{
		metadataActionKey: "Provide a non-empty password",
	})

// ErrorResponse is the public error envelope. Every failed request
// carries a machine readable name, a human message, and a suggested
// corrective action. Internal causes never appear here.
type ErrorResponse struct {
	Name       string `json:"name"`
	Message    string `json:"message"`
	Action     string `json:"action"`
	StatusCode int    `json:"status_code"`
}

func (r ErrorResponse) Error() string {
	return r.Message
}

// MapErrorToResponse collapses any error into the public envelope. Known
// domain failures pass through with their public fields untouched;
// everything else becomes a generic internal error. The original cause is
// returned separately so the boundary can log it server side.
func MapErrorToResponse(err error) (ErrorResponse, error) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return internalErrorResponse(), err
	}

	name, status := publicKind(richErr)
	if name == "" {
		return internalErrorResponse(), err
	}

	return ErrorResponse{
		Name:       name,
		Message:    richErr.Message,
		Action:     actionFromError(richErr),
		StatusCode: status,
	}, nil
}

func publicKind(err *goerrors.Error) (string, int) {
	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput, goerrors.CategoryConflict:
		return "ValidationError", 400
	case goerrors.CategoryNotFound:
		return "NotFoundError", 404
	case goerrors.CategoryAuth:
		return "UnauthorizedError", 401
	case goerrors.CategoryAuthz:
		return "ForbiddenError", 403
	default:
		return "", 0
	}
}

func actionFromError(err *goerrors.Error) string {
	if err.Metadata != nil {
		if action, ok := err.Metadata[metadataActionKey].(string); ok && action != "" {
			return action
		}
	}
	return "Contact support if the problem persists"
}

func internalErrorResponse() ErrorResponse {
	return ErrorResponse{
		Name:       "InternalServerError",
		Message:    "An internal server error occurred",
		Action:     "Contact support",
		StatusCode: 500,
	}
}
