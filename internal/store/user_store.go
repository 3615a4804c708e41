package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

// UserStore is the operation surface over user aggregates. It composes the
// normalizer with the backing collection and the role resolver, both
// injected at construction and treated as stateless dependencies.
//
// Facet setters mutate the aggregate in memory only; a follow-up Update
// persists them all in one whole-document replace. That batching is a
// deliberate contract, and so is its flip side: two concurrent updates of
// the same id race, and the loser's staged changes are silently lost.
type UserStore struct {
	users repository.UserCollection
	roles repository.RoleResolver
}

func NewUserStore(users repository.UserCollection, roles repository.RoleResolver) *UserStore {
	return &UserStore{users: users, roles: roles}
}

func requireUser(u *entity.User) error {
	if u == nil {
		return fmt.Errorf("%w: user is nil", repository.ErrInvalidArgument)
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// Create inserts the aggregate as a new document. Both normalized lookup
// fields are recomputed and the confirmation, lockout, and two-factor flags
// and the failed counter are reset regardless of what the caller staged.
// Uniqueness is enforced by the collection's indexes, not pre-checked here;
// a violation surfaces as repository.ErrDuplicateIdentity.
func (s *UserStore) Create(ctx context.Context, u *entity.User) error {
	if err := requireUser(u); err != nil {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.NormalizedUserName = Normalize(u.UserName)
	u.NormalizedEmail = Normalize(u.EmailAddress)

	u.AccessFailedCount = 0
	u.EmailConfirmed = false
	u.LockoutEnabled = false
	u.PhoneNumberConfirmed = false
	u.TwoFactorEnabled = false

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	return s.users.Insert(ctx, u)
}

// Update re-normalizes the lookup fields, so a renamed username or changed
// email stays consistent, then replaces the whole document keyed by id.
func (s *UserStore) Update(ctx context.Context, u *entity.User) error {
	if err := requireUser(u); err != nil {
		return err
	}

	u.NormalizedUserName = Normalize(u.UserName)
	u.NormalizedEmail = Normalize(u.EmailAddress)
	u.UpdatedAt = time.Now().UTC()

	return s.users.Replace(ctx, u)
}

// Delete removes the document by id unconditionally. A missing id is a
// silent success, consistent with the role/claim/login removal semantics.
func (s *UserStore) Delete(ctx context.Context, u *entity.User) error {
	if err := requireUser(u); err != nil {
		return err
	}
	return s.users.Delete(ctx, u.ID)
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*entity.User, error) {
	if blank(id) {
		return nil, fmt.Errorf("%w: id is blank", repository.ErrInvalidArgument)
	}
	return s.users.FindByID(ctx, id)
}

func (s *UserStore) FindByUserName(ctx context.Context, userName string) (*entity.User, error) {
	if blank(userName) {
		return nil, fmt.Errorf("%w: username is blank", repository.ErrInvalidArgument)
	}
	return s.users.FindByNormalizedUserName(ctx, Normalize(userName))
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if blank(email) {
		return nil, fmt.Errorf("%w: email is blank", repository.ErrInvalidArgument)
	}
	return s.users.FindByNormalizedEmail(ctx, Normalize(email))
}

// --- password facet ---

func (s *UserStore) SetPasswordHash(u *entity.User, passwordHash string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.PasswordHash = passwordHash
	return nil
}

func (s *UserStore) HasPassword(u *entity.User) (bool, error) {
	if err := requireUser(u); err != nil {
		return false, err
	}
	return !blank(u.PasswordHash), nil
}

// --- security stamp facet ---

func (s *UserStore) SetSecurityStamp(u *entity.User, stamp string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.SecurityStamp = stamp
	return nil
}

// --- email facet ---

// SetEmail updates the display address and its normalized copy together so
// the aggregate never carries a stale lookup field between calls.
func (s *UserStore) SetEmail(u *entity.User, email string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.EmailAddress = email
	u.NormalizedEmail = Normalize(email)
	return nil
}

func (s *UserStore) SetEmailConfirmed(u *entity.User, confirmed bool) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.EmailConfirmed = confirmed
	return nil
}

// --- phone facet ---

func (s *UserStore) SetPhoneNumber(u *entity.User, phoneNumber string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.PhoneNumber = phoneNumber
	return nil
}

func (s *UserStore) SetPhoneNumberConfirmed(u *entity.User, confirmed bool) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.PhoneNumberConfirmed = confirmed
	return nil
}

// --- two-factor facet ---

func (s *UserStore) SetTwoFactorEnabled(u *entity.User, enabled bool) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.TwoFactorEnabled = enabled
	return nil
}

// --- lockout facet ---

func (s *UserStore) SetLockoutEnabled(u *entity.User, enabled bool) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.LockoutEnabled = enabled
	return nil
}

func (s *UserStore) SetLockoutEndUTC(u *entity.User, end *time.Time) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.LockoutEndUTC = end
	return nil
}

// IncrementAccessFailedCount is the one facet mutation persisted
// immediately: the increment is delegated to the collection's atomic
// primitive rather than expressed as a read-modify-write on the local copy,
// so concurrent increments on the same id never lose updates. The record is
// then re-fetched to return the new count; a different caller's increment
// may already be included, which is acceptable for threshold checks.
func (s *UserStore) IncrementAccessFailedCount(ctx context.Context, u *entity.User) (int, error) {
	if err := requireUser(u); err != nil {
		return 0, err
	}
	if err := s.users.IncrementAccessFailedCount(ctx, u.ID); err != nil {
		return 0, err
	}
	fresh, err := s.users.FindByID(ctx, u.ID)
	if err != nil {
		return 0, err
	}
	if fresh == nil {
		return 0, nil
	}
	return fresh.AccessFailedCount, nil
}

func (s *UserStore) ResetAccessFailedCount(u *entity.User) error {
	if err := requireUser(u); err != nil {
		return err
	}
	u.AccessFailedCount = 0
	return nil
}

// --- role capability ---

// AddToRole resolves roleName against the role collection first. An unknown
// name is a silent no-op, as is an already-held membership; the recorded
// entry snapshots the role name at assignment time.
func (s *UserStore) AddToRole(ctx context.Context, u *entity.User, roleName string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if blank(roleName) {
		return fmt.Errorf("%w: role name is blank", repository.ErrInvalidArgument)
	}

	role, err := s.roles.FindRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return nil
	}
	for _, r := range u.Roles {
		if r.RoleID == role.ID {
			return nil
		}
	}
	u.Roles = append(u.Roles, entity.UserRole{RoleID: role.ID, RoleName: role.Name})
	return nil
}

func (s *UserStore) RemoveFromRole(ctx context.Context, u *entity.User, roleName string) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if blank(roleName) {
		return fmt.Errorf("%w: role name is blank", repository.ErrInvalidArgument)
	}

	role, err := s.roles.FindRoleByName(ctx, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return nil
	}
	for i, r := range u.Roles {
		if r.RoleID == role.ID {
			u.Roles = append(u.Roles[:i], u.Roles[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetRoles returns the in-memory membership names. Always a collection,
// never nil.
func (s *UserStore) GetRoles(u *entity.User) ([]string, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.RoleName)
	}
	return names, nil
}

func (s *UserStore) IsInRole(u *entity.User, roleName string) (bool, error) {
	if err := requireUser(u); err != nil {
		return false, err
	}
	if blank(roleName) {
		return false, fmt.Errorf("%w: role name is blank", repository.ErrInvalidArgument)
	}
	for _, r := range u.Roles {
		if r.RoleName == roleName {
			return true, nil
		}
	}
	return false, nil
}

// --- claim capability ---

// AddClaim appends unconditionally. No duplicate check, asymmetric with
// roles and logins.
func (s *UserStore) AddClaim(u *entity.User, claim entity.UserClaim) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if blank(claim.Type) {
		return fmt.Errorf("%w: claim type is blank", repository.ErrInvalidArgument)
	}
	u.Claims = append(u.Claims, claim)
	return nil
}

// RemoveClaim removes the first entry matching both type and value exactly;
// an absent match is a no-op.
func (s *UserStore) RemoveClaim(u *entity.User, claim entity.UserClaim) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if blank(claim.Type) {
		return fmt.Errorf("%w: claim type is blank", repository.ErrInvalidArgument)
	}
	for i, c := range u.Claims {
		if c.Type == claim.Type && c.Value == claim.Value {
			u.Claims = append(u.Claims[:i], u.Claims[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetClaims returns a defensive copy; mutating the result never touches the
// aggregate.
func (s *UserStore) GetClaims(u *entity.User) ([]entity.UserClaim, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	out := make([]entity.UserClaim, len(u.Claims))
	copy(out, u.Claims)
	return out, nil
}

// --- login capability ---

func requireLogin(login entity.UserLogin) error {
	if blank(login.Provider) || blank(login.ProviderKey) {
		return fmt.Errorf("%w: login provider and key are required", repository.ErrInvalidArgument)
	}
	return nil
}

// AddLogin appends only when no existing entry shares both provider and
// provider key.
func (s *UserStore) AddLogin(u *entity.User, login entity.UserLogin) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if err := requireLogin(login); err != nil {
		return err
	}
	for _, l := range u.Logins {
		if l.Provider == login.Provider && l.ProviderKey == login.ProviderKey {
			return nil
		}
	}
	u.Logins = append(u.Logins, login)
	return nil
}

func (s *UserStore) RemoveLogin(u *entity.User, login entity.UserLogin) error {
	if err := requireUser(u); err != nil {
		return err
	}
	if err := requireLogin(login); err != nil {
		return err
	}
	for i, l := range u.Logins {
		if l.Provider == login.Provider && l.ProviderKey == login.ProviderKey {
			u.Logins = append(u.Logins[:i], u.Logins[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetLogins returns a defensive copy.
func (s *UserStore) GetLogins(u *entity.User) ([]entity.UserLogin, error) {
	if err := requireUser(u); err != nil {
		return nil, err
	}
	out := make([]entity.UserLogin, len(u.Logins))
	copy(out, u.Logins)
	return out, nil
}

// FindByLogin queries for the aggregate whose logins contain an element
// equal to the given pair.
func (s *UserStore) FindByLogin(ctx context.Context, login entity.UserLogin) (*entity.User, error) {
	if err := requireLogin(login); err != nil {
		return nil, err
	}
	return s.users.FindByLogin(ctx, login.Provider, login.ProviderKey)
}

// --- queryable capability ---

// All opens a lazy cursor over every aggregate, optionally filtered by
// predicates evaluated per document as the cursor advances. Restart by
// calling All again. The backing store's query language never leaks through
// this surface.
func (s *UserStore) All(ctx context.Context, preds ...repository.Predicate) (repository.UserCursor, error) {
	cur, err := s.users.All(ctx)
	if err != nil {
		return nil, err
	}
	if len(preds) == 0 {
		return cur, nil
	}
	return &filteredCursor{inner: cur, preds: preds}, nil
}

var (
	_ repository.UserStore              = (*UserStore)(nil)
	_ repository.UserPasswordStore      = (*UserStore)(nil)
	_ repository.UserSecurityStampStore = (*UserStore)(nil)
	_ repository.UserEmailStore         = (*UserStore)(nil)
	_ repository.UserPhoneNumberStore   = (*UserStore)(nil)
	_ repository.UserTwoFactorStore     = (*UserStore)(nil)
	_ repository.UserLockoutStore       = (*UserStore)(nil)
	_ repository.UserRoleStore          = (*UserStore)(nil)
	_ repository.UserClaimStore         = (*UserStore)(nil)
	_ repository.UserLoginStore         = (*UserStore)(nil)
	_ repository.QueryableUserStore     = (*UserStore)(nil)
)
