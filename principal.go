package identity

// Principal is the resolved actor for a request: either an
// authenticated user or the fixed-capability anonymous identity.
type Principal interface {
	ID() string
	Username() string
	Email() string
	Features() CapabilitySet
	IsAnonymous() bool
}

// UserPrincipal wraps a user record as a request principal.
func UserPrincipal(user *User) Principal {
	return userPrincipal{user: user}
}

type userPrincipal struct {
	user *User
}

func (p userPrincipal) ID() string {
	return p.user.ID.String()
}

func (p userPrincipal) Username() string {
	return p.user.Username
}

func (p userPrincipal) Email() string {
	return p.user.Email
}

func (p userPrincipal) Features() CapabilitySet {
	return p.user.Features
}

func (p userPrincipal) IsAnonymous() bool {
	return false
}

// AnonymousPrincipal returns the principal used when a request carries
// no session token.
func AnonymousPrincipal() Principal {
	return anonymousPrincipal{}
}

type anonymousPrincipal struct{}

func (anonymousPrincipal) ID() string              { return "" }
func (anonymousPrincipal) Username() string        { return "" }
func (anonymousPrincipal) Email() string           { return "" }
func (anonymousPrincipal) Features() CapabilitySet { return AnonymousFeatures() }
func (anonymousPrincipal) IsAnonymous() bool       { return true }

var (
	_ Principal = userPrincipal{}
	_ Principal = anonymousPrincipal{}
)
