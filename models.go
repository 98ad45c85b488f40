package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Capabilities live in the Features column and
// are always replaced wholesale, never merged.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string        `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string        `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string        `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	Features      CapabilitySet `bun:"features,notnull" json:"features,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time    `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// HasFeature reports whether the user currently holds a capability.
func (u *User) HasFeature(capability string) bool {
	return u.Features.Has(capability)
}

// Session is a durable bearer session. A session is valid while
// expires_at is in the future; revocation forces expires_at into the
// past, rows are never hard deleted.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Active reports whether the session is valid at the given instant.
func (s *Session) Active(at time.Time) bool {
	return s.ExpiresAt.After(at)
}

// ActivationToken is a one-time, time-boxed token that upgrades a
// user's capability set exactly once.
type ActivationToken struct {
	bun.BaseModel `bun:"table:user_activation_tokens,alias:uat"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	UsedAt        *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Usable reports whether the token can still be consumed at the given
// instant: not expired and never used.
func (t *ActivationToken) Usable(at time.Time) bool {
	return t.UsedAt == nil && t.ExpiresAt.After(at)
}
