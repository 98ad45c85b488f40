package identity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// Capability is a string token granting permission to perform one class
// of action. The vocabulary is open ended: extend by adding new token
// strings, never by building a role hierarchy.
type Capability = string

const (
	// CapabilityReadActivationToken allows consuming an activation token.
	// Every freshly registered user holds exactly this capability until
	// activation replaces the set.
	CapabilityReadActivationToken Capability = "read:activation_token"
	// CapabilityCreateSession allows logging in.
	CapabilityCreateSession Capability = "create:session"
	// CapabilityReadSession allows acting on the current session.
	CapabilityReadSession Capability = "read:session"
	// CapabilityCreateUser allows registering a new account.
	CapabilityCreateUser Capability = "create:user"
)

// CapabilitySet is an unordered set of capability tokens. It round-trips
// through the database as a JSON array so it works the same on postgres
// and the sqlite test dialect.
type CapabilitySet []string

// Has reports set membership by exact match.
func (s CapabilitySet) Has(capability string) bool {
	return slices.Contains(s, capability)
}

// Clone returns an independent copy, nil stays nil.
func (s CapabilitySet) Clone() CapabilitySet {
	if s == nil {
		return nil
	}
	out := make(CapabilitySet, len(s))
	copy(out, s)
	return out
}

func (s CapabilitySet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *CapabilitySet) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}

	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("capability set: unsupported scan type %T", src)
	}

	if len(raw) == 0 {
		*s = nil
		return nil
	}

	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// DefaultUserFeatures is the capability set attached to every new user.
func DefaultUserFeatures() CapabilitySet {
	return CapabilitySet{CapabilityReadActivationToken}
}

// ActivatedUserFeatures is the baseline set a user receives when their
// activation token is consumed.
func ActivatedUserFeatures() CapabilitySet {
	return CapabilitySet{CapabilityCreateSession, CapabilityReadSession}
}

// AnonymousFeatures is the fixed set of an unauthenticated principal:
// it may register and log in, but never act as an existing account.
func AnonymousFeatures() CapabilitySet {
	return CapabilitySet{CapabilityReadActivationToken, CapabilityCreateSession, CapabilityCreateUser}
}

// Can is the authorization predicate: does the principal's capability
// set contain the required capability. Pure, no I/O.
func Can(p Principal, capability string) bool {
	if p == nil {
		return false
	}
	return p.Features().Has(capability)
}

// Require converts a failed Can check into ErrCapabilityRequired. The
// returned error never reveals which capability was missing.
func Require(p Principal, capability string) error {
	if Can(p, capability) {
		return nil
	}
	return ErrCapabilityRequired
}
