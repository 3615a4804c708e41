package repository

import (
	"context"
	"time"

	"github.com/helioslabs/identity-store/internal/domain/entity"
)

// The identity store is exposed as a set of narrow capability interfaces, all
// implemented by one store type. Each facet can be consumed, tested, and if
// ever needed swapped independently.
//
// Lookup operations return (nil, nil) when no record matches; absence is a
// result, not an error.
//
// Facet setters and the role/claim/login mutators change the aggregate the
// caller already holds, purely in memory. Durability requires a subsequent
// Update, which replaces the whole document (last writer wins). The one
// exception is IncrementAccessFailedCount, persisted immediately through an
// atomic increment.

// UserStore is the base create/lookup/update/delete surface.
type UserStore interface {
	Create(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, u *entity.User) error
	Delete(ctx context.Context, u *entity.User) error
	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByUserName(ctx context.Context, userName string) (*entity.User, error)
}

// UserPasswordStore manages the opaque password hash.
type UserPasswordStore interface {
	SetPasswordHash(u *entity.User, passwordHash string) error
	HasPassword(u *entity.User) (bool, error)
}

// UserSecurityStampStore manages the opaque rotation token.
type UserSecurityStampStore interface {
	SetSecurityStamp(u *entity.User, stamp string) error
}

// UserEmailStore manages the email facet and its confirmed flag.
type UserEmailStore interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	SetEmail(u *entity.User, email string) error
	SetEmailConfirmed(u *entity.User, confirmed bool) error
}

// UserPhoneNumberStore manages the phone facet and its confirmed flag.
type UserPhoneNumberStore interface {
	SetPhoneNumber(u *entity.User, phoneNumber string) error
	SetPhoneNumberConfirmed(u *entity.User, confirmed bool) error
}

// UserTwoFactorStore toggles two-factor state.
type UserTwoFactorStore interface {
	SetTwoFactorEnabled(u *entity.User, enabled bool) error
}

// UserLockoutStore manages lockout data. The store records counters and the
// lockout window on instruction; comparing the window to "now" is the
// caller's responsibility.
type UserLockoutStore interface {
	SetLockoutEnabled(u *entity.User, enabled bool) error
	SetLockoutEndUTC(u *entity.User, end *time.Time) error
	IncrementAccessFailedCount(ctx context.Context, u *entity.User) (int, error)
	ResetAccessFailedCount(u *entity.User) error
}

// UserRoleStore manages role memberships. Adding resolves the role name via
// the RoleResolver first; an unknown name is a silent no-op.
type UserRoleStore interface {
	AddToRole(ctx context.Context, u *entity.User, roleName string) error
	RemoveFromRole(ctx context.Context, u *entity.User, roleName string) error
	GetRoles(u *entity.User) ([]string, error)
	IsInRole(u *entity.User, roleName string) (bool, error)
}

// UserClaimStore manages claims. Claims are appended without a duplicate
// check, asymmetric with roles and logins on purpose.
type UserClaimStore interface {
	AddClaim(u *entity.User, claim entity.UserClaim) error
	RemoveClaim(u *entity.User, claim entity.UserClaim) error
	GetClaims(u *entity.User) ([]entity.UserClaim, error)
}

// UserLoginStore manages external login bindings.
type UserLoginStore interface {
	AddLogin(u *entity.User, login entity.UserLogin) error
	RemoveLogin(u *entity.User, login entity.UserLogin) error
	GetLogins(u *entity.User) ([]entity.UserLogin, error)
	FindByLogin(ctx context.Context, login entity.UserLogin) (*entity.User, error)
}

// Predicate filters aggregates during a bulk read. Predicates run against
// each document as the cursor advances, keeping the surface portable across
// backing-store implementations.
type Predicate func(*entity.User) bool

// QueryableUserStore exposes the full aggregate set as a lazy, restartable
// sequence. This is the only place arbitrary querying is permitted.
type QueryableUserStore interface {
	All(ctx context.Context, preds ...Predicate) (UserCursor, error)
}
