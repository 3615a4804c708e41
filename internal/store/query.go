package store

import (
	"context"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

// Fixed predicate builders for the bulk read surface.

// EmailConfirmed matches aggregates whose email confirmation flag equals v.
func EmailConfirmed(v bool) repository.Predicate {
	return func(u *entity.User) bool { return u.EmailConfirmed == v }
}

// LockoutEnabled matches aggregates whose lockout flag equals v.
func LockoutEnabled(v bool) repository.Predicate {
	return func(u *entity.User) bool { return u.LockoutEnabled == v }
}

// InRole matches aggregates holding a membership with the given role name.
func InRole(roleName string) repository.Predicate {
	return func(u *entity.User) bool {
		for _, r := range u.Roles {
			if r.RoleName == roleName {
				return true
			}
		}
		return false
	}
}

// HasLoginProvider matches aggregates with at least one login from provider.
func HasLoginProvider(provider string) repository.Predicate {
	return func(u *entity.User) bool {
		for _, l := range u.Logins {
			if l.Provider == provider {
				return true
			}
		}
		return false
	}
}

// filteredCursor advances the inner cursor until a document passes every
// predicate, keeping the sequence lazy.
type filteredCursor struct {
	inner   repository.UserCursor
	preds   []repository.Predicate
	current *entity.User
}

func (c *filteredCursor) Next(ctx context.Context) bool {
	for c.inner.Next(ctx) {
		u := c.inner.Current()
		if c.matches(u) {
			c.current = u
			return true
		}
	}
	c.current = nil
	return false
}

func (c *filteredCursor) matches(u *entity.User) bool {
	for _, p := range c.preds {
		if !p(u) {
			return false
		}
	}
	return true
}

func (c *filteredCursor) Current() *entity.User { return c.current }

func (c *filteredCursor) Err() error { return c.inner.Err() }

func (c *filteredCursor) Close(ctx context.Context) error { return c.inner.Close(ctx) }
