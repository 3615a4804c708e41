package entity

import (
	"time"
)

// User is the aggregate root for the identity domain: one account record
// together with its embedded role, login, and claim collections. The whole
// document is the unit of replace on update.
//
// PasswordHash and SecurityStamp are opaque to this package; hashing and
// stamp rotation belong to the caller.
type User struct {
	ID       string `bson:"_id,omitempty"`
	UserName string `bson:"username"`
	// NormalizedUserName is the lowercased copy of UserName kept in sync by
	// the store on every create/update. Lookups compare against this field
	// only, backed by a unique index.
	NormalizedUserName string `bson:"normalized_username"`
	EmailAddress       string `bson:"email"`
	NormalizedEmail    string `bson:"normalized_email"`
	EmailConfirmed     bool   `bson:"email_confirmed"`

	PhoneNumber          string `bson:"phone_number,omitempty"`
	PhoneNumberConfirmed bool   `bson:"phone_number_confirmed"`

	PasswordHash  string `bson:"password_hash,omitempty"`
	SecurityStamp string `bson:"security_stamp,omitempty"`

	TwoFactorEnabled bool `bson:"two_factor_enabled"`

	LockoutEnabled bool `bson:"lockout_enabled"`
	// LockoutEndUTC absent means "not locked". Its presence does not by
	// itself block sign-in; interpreting it against the clock is the
	// caller's job.
	LockoutEndUTC     *time.Time `bson:"lockout_end_utc,omitempty"`
	AccessFailedCount int        `bson:"access_failed_count"`

	Roles  []UserRole  `bson:"roles,omitempty"`
	Logins []UserLogin `bson:"logins,omitempty"`
	Claims []UserClaim `bson:"claims,omitempty"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// UserRole is a role membership embedded in the aggregate. RoleName is a
// denormalized snapshot taken at assignment time; a later role rename is not
// reflected here unless re-synced.
type UserRole struct {
	RoleID   string `bson:"role_id"`
	RoleName string `bson:"role_name"`
}

// UserLogin binds an external login provider identity to the aggregate,
// unique by the (Provider, ProviderKey) pair.
type UserLogin struct {
	Provider    string `bson:"provider"`
	ProviderKey string `bson:"provider_key"`
}

// UserClaim is an arbitrary (Type, Value) pair owned by the aggregate.
// Duplicates are permitted.
type UserClaim struct {
	Type  string `bson:"type"`
	Value string `bson:"value"`
}
