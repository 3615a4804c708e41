package repository

import (
	"context"

	"github.com/helioslabs/identity-store/internal/domain/entity"
)

// UserCollection is the backing persistence collaborator: a document
// collection holding user aggregates. Implementations must keep unique
// indexes on the normalized username, the normalized email, and the
// (provider, provider_key) login pair, and report violations as
// ErrDuplicateIdentity.
//
// The store issues single request/response exchanges against this port and
// holds no locks of its own. Cancellation and timeouts follow the ctx.
type UserCollection interface {
	// Insert adds a new document. Fails with ErrDuplicateIdentity on a
	// unique-index violation.
	Insert(ctx context.Context, u *entity.User) error
	// Replace overwrites the whole document keyed by u.ID. No concurrency
	// token; the last replace to land wins.
	Replace(ctx context.Context, u *entity.User) error
	// Delete removes the document by id. Deleting a missing id is not an
	// error and the removed count is not inspected.
	Delete(ctx context.Context, id string) error

	FindByID(ctx context.Context, id string) (*entity.User, error)
	FindByNormalizedUserName(ctx context.Context, normalized string) (*entity.User, error)
	FindByNormalizedEmail(ctx context.Context, normalized string) (*entity.User, error)
	// FindByLogin matches any aggregate whose logins collection contains an
	// element equal to (provider, providerKey).
	FindByLogin(ctx context.Context, provider, providerKey string) (*entity.User, error)

	// IncrementAccessFailedCount bumps the counter by one atomically in the
	// backing store, safe under concurrent increments on the same id.
	IncrementAccessFailedCount(ctx context.Context, id string) error

	// All opens a lazy cursor over every aggregate.
	All(ctx context.Context) (UserCursor, error)
}

// UserCursor iterates a sequence of aggregates lazily. Callers restart the
// sequence by asking for a new cursor.
type UserCursor interface {
	Next(ctx context.Context) bool
	Current() *entity.User
	Err() error
	Close(ctx context.Context) error
}

// RoleResolver is the read-only name-to-role lookup consulted before a role
// membership is recorded. The identity store never creates, renames, or
// deletes roles. Absent roles are (nil, nil).
type RoleResolver interface {
	FindRoleByName(ctx context.Context, name string) (*entity.Role, error)
}
