package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

// In-memory stand-ins for the two ports. memUsers mirrors the document
// collection contract including the unique indexes, so the store's behavior
// around duplicates, atomic increments, and whole-document replaces can be
// exercised without a running database.

type memUsers struct {
	mu   sync.Mutex
	docs map[string]entity.User // stored by value: a replace snapshots the aggregate
}

func newMemUsers() *memUsers {
	return &memUsers{docs: make(map[string]entity.User)}
}

func (m *memUsers) violatesUnique(u *entity.User, excludeID string) bool {
	for id, d := range m.docs {
		if id == excludeID {
			continue
		}
		if d.NormalizedUserName == u.NormalizedUserName || d.NormalizedEmail == u.NormalizedEmail {
			return true
		}
		for _, l := range d.Logins {
			for _, nl := range u.Logins {
				if l.Provider == nl.Provider && l.ProviderKey == nl.ProviderKey {
					return true
				}
			}
		}
	}
	return false
}

func (m *memUsers) Insert(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[u.ID]; ok {
		return fmt.Errorf("%w: _id", repository.ErrDuplicateIdentity)
	}
	if m.violatesUnique(u, u.ID) {
		return fmt.Errorf("%w: unique index", repository.ErrDuplicateIdentity)
	}
	m.docs[u.ID] = cloneUser(u)
	return nil
}

func (m *memUsers) Replace(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.violatesUnique(u, u.ID) {
		return fmt.Errorf("%w: unique index", repository.ErrDuplicateIdentity)
	}
	m.docs[u.ID] = cloneUser(u)
	return nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, id)
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		out := cloneUser(&d)
		return &out, nil
	}
	return nil, nil
}

func (m *memUsers) FindByNormalizedUserName(_ context.Context, normalized string) (*entity.User, error) {
	return m.findBy(func(d *entity.User) bool { return d.NormalizedUserName == normalized })
}

func (m *memUsers) FindByNormalizedEmail(_ context.Context, normalized string) (*entity.User, error) {
	return m.findBy(func(d *entity.User) bool { return d.NormalizedEmail == normalized })
}

func (m *memUsers) FindByLogin(_ context.Context, provider, providerKey string) (*entity.User, error) {
	return m.findBy(func(d *entity.User) bool {
		for _, l := range d.Logins {
			if l.Provider == provider && l.ProviderKey == providerKey {
				return true
			}
		}
		return false
	})
}

func (m *memUsers) findBy(match func(*entity.User) bool) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if match(&d) {
			out := cloneUser(&d)
			return &out, nil
		}
	}
	return nil, nil
}

func (m *memUsers) IncrementAccessFailedCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.docs[id]; ok {
		d.AccessFailedCount++
		m.docs[id] = d
	}
	return nil
}

func (m *memUsers) All(_ context.Context) (repository.UserCursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := make([]entity.User, 0, len(m.docs))
	for _, d := range m.docs {
		docs = append(docs, cloneUser(&d))
	}
	return &memCursor{docs: docs, pos: -1}, nil
}

func cloneUser(u *entity.User) entity.User {
	out := *u
	out.Roles = append([]entity.UserRole(nil), u.Roles...)
	out.Logins = append([]entity.UserLogin(nil), u.Logins...)
	out.Claims = append([]entity.UserClaim(nil), u.Claims...)
	if u.LockoutEndUTC != nil {
		end := *u.LockoutEndUTC
		out.LockoutEndUTC = &end
	}
	return out
}

type memCursor struct {
	docs []entity.User
	pos  int
}

func (c *memCursor) Next(context.Context) bool {
	c.pos++
	return c.pos < len(c.docs)
}

func (c *memCursor) Current() *entity.User {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return &c.docs[c.pos]
}

func (c *memCursor) Err() error                { return nil }
func (c *memCursor) Close(context.Context) error { return nil }

type memRoles struct {
	roles map[string]entity.Role // keyed by name
}

func newMemRoles(roles ...entity.Role) *memRoles {
	m := &memRoles{roles: make(map[string]entity.Role)}
	for _, r := range roles {
		m.roles[r.Name] = r
	}
	return m
}

func (m *memRoles) FindRoleByName(_ context.Context, name string) (*entity.Role, error) {
	if r, ok := m.roles[name]; ok {
		return &r, nil
	}
	return nil, nil
}

var (
	_ repository.UserCollection = (*memUsers)(nil)
	_ repository.RoleResolver   = (*memRoles)(nil)
)
