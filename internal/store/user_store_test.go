package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
)

func newTestStore(roles ...entity.Role) (*UserStore, *memUsers) {
	users := newMemUsers()
	return NewUserStore(users, newMemRoles(roles...)), users
}

func TestCreateNormalizesAndResetsDefaults(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{
		UserName:             "Bob",
		EmailAddress:         "Bob@Example.com",
		AccessFailedCount:    7,
		EmailConfirmed:       true,
		LockoutEnabled:       true,
		PhoneNumberConfirmed: true,
		TwoFactorEnabled:     true,
	}
	require.NoError(t, s.Create(ctx, u))
	require.NotEmpty(t, u.ID)

	stored, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	assert.Equal(t, "bob", stored.NormalizedUserName)
	assert.Equal(t, "bob@example.com", stored.NormalizedEmail)
	assert.Equal(t, "Bob", stored.UserName)
	assert.Equal(t, 0, stored.AccessFailedCount)
	assert.False(t, stored.EmailConfirmed)
	assert.False(t, stored.LockoutEnabled)
	assert.False(t, stored.PhoneNumberConfirmed)
	assert.False(t, stored.TwoFactorEnabled)
}

func TestCreateNilUser(t *testing.T) {
	s, _ := newTestStore()
	err := s.Create(context.Background(), nil)
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
}

func TestCreateRelaysDuplicateIdentity(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, &entity.User{UserName: "alice", EmailAddress: "alice@example.com"}))

	err := s.Create(ctx, &entity.User{UserName: "Alice", EmailAddress: "other@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateIdentity)

	err = s.Create(ctx, &entity.User{UserName: "alice2", EmailAddress: "ALICE@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicateIdentity)
}

func TestFindByUserNameAnyCasing(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "CamelCase", EmailAddress: "camel@example.com"}
	require.NoError(t, s.Create(ctx, u))

	for _, name := range []string{"camelcase", "CAMELCASE", "CamelCase", "cAmElCaSe"} {
		found, err := s.FindByUserName(ctx, name)
		require.NoError(t, err)
		require.NotNil(t, found, "lookup with casing %q", name)
		assert.Equal(t, u.ID, found.ID)
	}
}

func TestFindByEmailAnyCasing(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "carol", EmailAddress: "Carol@Example.com"}
	require.NoError(t, s.Create(ctx, u))

	found, err := s.FindByEmail(ctx, "carol@EXAMPLE.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)
}

func TestFindBlankArguments(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	_, err := s.FindByID(ctx, "  ")
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = s.FindByUserName(ctx, "")
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
	_, err = s.FindByEmail(ctx, "")
	assert.ErrorIs(t, err, repository.ErrInvalidArgument)
}

func TestFindAbsentIsNotAnError(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u, err := s.FindByUserName(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestUpdateRenormalizesIdentityFields(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "Dave", EmailAddress: "dave@example.com"}
	require.NoError(t, s.Create(ctx, u))

	u.UserName = "Dave-Renamed"
	u.EmailAddress = "Dave.New@Example.com"
	require.NoError(t, s.Update(ctx, u))

	found, err := s.FindByUserName(ctx, "dave-renamed")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "dave.new@example.com", found.NormalizedEmail)

	gone, err := s.FindByEmail(ctx, "dave@example.com")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestUpdateLastWriterWins(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "eve", EmailAddress: "eve@example.com"}
	require.NoError(t, s.Create(ctx, u))

	// Two callers hold independent snapshots of the same record.
	first, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	second, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, s.SetEmailConfirmed(first, true))
	require.NoError(t, s.Update(ctx, first))

	// The second caller changes only the phone number, but its stale
	// snapshot replaces the whole document and reverts the first change.
	require.NoError(t, s.SetPhoneNumber(second, "+15551234567"))
	require.NoError(t, s.Update(ctx, second))

	stored, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "+15551234567", stored.PhoneNumber)
	assert.False(t, stored.EmailConfirmed, "stale replace overwrites the concurrent change")
}

func TestDeleteMissingIDIsSilent(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	err := s.Delete(ctx, &entity.User{ID: "never-existed"})
	assert.NoError(t, err)
}

func TestFacetSettersStayInMemory(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "frank", EmailAddress: "frank@example.com"}
	require.NoError(t, s.Create(ctx, u))

	require.NoError(t, s.SetPasswordHash(u, "opaque-hash"))
	require.NoError(t, s.SetSecurityStamp(u, "stamp-1"))
	require.NoError(t, s.SetTwoFactorEnabled(u, true))

	// Nothing persisted until Update.
	stored, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordHash)
	assert.False(t, stored.TwoFactorEnabled)

	require.NoError(t, s.Update(ctx, u))
	stored, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "opaque-hash", stored.PasswordHash)
	assert.Equal(t, "stamp-1", stored.SecurityStamp)
	assert.True(t, stored.TwoFactorEnabled)
}

func TestHasPassword(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{}

	has, err := s.HasPassword(u)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.SetPasswordHash(u, "h"))
	has, err = s.HasPassword(u)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestIncrementAccessFailedCount(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "grace", EmailAddress: "grace@example.com"}
	require.NoError(t, s.Create(ctx, u))

	for want := 1; want <= 3; want++ {
		n, err := s.IncrementAccessFailedCount(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// The in-memory aggregate is untouched; only the stored document moved.
	assert.Equal(t, 0, u.AccessFailedCount)

	require.NoError(t, s.ResetAccessFailedCount(u))
	require.NoError(t, s.Update(ctx, u))
	stored, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.AccessFailedCount)
}

func TestLockoutWindowIsDataNotControlFlow(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "heidi", EmailAddress: "heidi@example.com"}
	require.NoError(t, s.Create(ctx, u))

	end := time.Now().UTC().Add(15 * time.Minute)
	require.NoError(t, s.SetLockoutEnabled(u, true))
	require.NoError(t, s.SetLockoutEndUTC(u, &end))
	require.NoError(t, s.Update(ctx, u))

	stored, err := s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LockoutEndUTC)
	assert.True(t, stored.LockoutEnabled)
	assert.WithinDuration(t, end, *stored.LockoutEndUTC, time.Second)

	require.NoError(t, s.SetLockoutEndUTC(u, nil))
	require.NoError(t, s.Update(ctx, u))
	stored, err = s.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LockoutEndUTC)
}

func TestAddToRoleIdempotent(t *testing.T) {
	s, _ := newTestStore(entity.Role{ID: "r1", Name: "Admin"})
	ctx := context.Background()
	u := &entity.User{UserName: "ivan", EmailAddress: "ivan@example.com"}

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))
	require.NoError(t, s.AddToRole(ctx, u, "Admin"))

	roles, err := s.GetRoles(u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, roles)

	in, err := s.IsInRole(u, "Admin")
	require.NoError(t, err)
	assert.True(t, in)
}

func TestAddToRoleUnknownRoleIsNoOp(t *testing.T) {
	s, _ := newTestStore() // no roles registered
	ctx := context.Background()
	u := &entity.User{UserName: "judy", EmailAddress: "judy@example.com"}

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))

	roles, err := s.GetRoles(u)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NotNil(t, roles, "empty collection, never absent")
}

func TestRemoveFromRole(t *testing.T) {
	s, _ := newTestStore(
		entity.Role{ID: "r1", Name: "Admin"},
		entity.Role{ID: "r2", Name: "Support"},
	)
	ctx := context.Background()
	u := &entity.User{UserName: "kate", EmailAddress: "kate@example.com"}

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))
	require.NoError(t, s.AddToRole(ctx, u, "Support"))

	require.NoError(t, s.RemoveFromRole(ctx, u, "Admin"))
	roles, err := s.GetRoles(u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Support"}, roles)

	// Removing a membership the user never had, or an unknown role, is fine.
	require.NoError(t, s.RemoveFromRole(ctx, u, "Admin"))
	require.NoError(t, s.RemoveFromRole(ctx, u, "NoSuchRole"))
	roles, err = s.GetRoles(u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Support"}, roles)
}

func TestRoleNameIsSnapshot(t *testing.T) {
	resolver := newMemRoles(entity.Role{ID: "r1", Name: "Admin"})
	s := NewUserStore(newMemUsers(), resolver)
	ctx := context.Background()
	u := &entity.User{UserName: "leo", EmailAddress: "leo@example.com"}

	require.NoError(t, s.AddToRole(ctx, u, "Admin"))

	// A later rename in the role collection is not reflected retroactively.
	delete(resolver.roles, "Admin")
	resolver.roles["Administrators"] = entity.Role{ID: "r1", Name: "Administrators"}

	roles, err := s.GetRoles(u)
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, roles)
}

func TestClaimsAccumulateDuplicates(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{UserName: "mallory", EmailAddress: "mallory@example.com"}

	c := entity.UserClaim{Type: "scope", Value: "read"}
	require.NoError(t, s.AddClaim(u, c))
	require.NoError(t, s.AddClaim(u, c))

	claims, err := s.GetClaims(u)
	require.NoError(t, err)
	assert.Len(t, claims, 2, "duplicate claims accumulate")
}

func TestRemoveClaimFirstMatchOnly(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{UserName: "nina", EmailAddress: "nina@example.com"}

	c := entity.UserClaim{Type: "scope", Value: "read"}
	require.NoError(t, s.AddClaim(u, c))
	require.NoError(t, s.AddClaim(u, c))
	require.NoError(t, s.AddClaim(u, entity.UserClaim{Type: "scope", Value: "write"}))

	require.NoError(t, s.RemoveClaim(u, c))
	claims, err := s.GetClaims(u)
	require.NoError(t, err)
	assert.Len(t, claims, 2)

	// Value must match exactly; removing an absent pair changes nothing.
	require.NoError(t, s.RemoveClaim(u, entity.UserClaim{Type: "scope", Value: "admin"}))
	claims, err = s.GetClaims(u)
	require.NoError(t, err)
	assert.Len(t, claims, 2)
}

func TestGetClaimsReturnsCopy(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{UserName: "oscar", EmailAddress: "oscar@example.com"}
	require.NoError(t, s.AddClaim(u, entity.UserClaim{Type: "scope", Value: "read"}))

	claims, err := s.GetClaims(u)
	require.NoError(t, err)
	claims[0].Value = "mutated"

	fresh, err := s.GetClaims(u)
	require.NoError(t, err)
	assert.Equal(t, "read", fresh[0].Value)
}

func TestAddLoginIdempotent(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{UserName: "peggy", EmailAddress: "peggy@example.com"}

	l := entity.UserLogin{Provider: "google", ProviderKey: "abc"}
	require.NoError(t, s.AddLogin(u, l))
	require.NoError(t, s.AddLogin(u, l))

	logins, err := s.GetLogins(u)
	require.NoError(t, err)
	assert.Len(t, logins, 1)

	// Same provider, different key, is a distinct binding.
	require.NoError(t, s.AddLogin(u, entity.UserLogin{Provider: "google", ProviderKey: "xyz"}))
	logins, err = s.GetLogins(u)
	require.NoError(t, err)
	assert.Len(t, logins, 2)
}

func TestRemoveLoginAbsentIsNoOp(t *testing.T) {
	s, _ := newTestStore()
	u := &entity.User{UserName: "quinn", EmailAddress: "quinn@example.com"}
	require.NoError(t, s.AddLogin(u, entity.UserLogin{Provider: "google", ProviderKey: "abc"}))

	require.NoError(t, s.RemoveLogin(u, entity.UserLogin{Provider: "github", ProviderKey: "abc"}))
	logins, err := s.GetLogins(u)
	require.NoError(t, err)
	assert.Len(t, logins, 1)

	require.NoError(t, s.RemoveLogin(u, entity.UserLogin{Provider: "google", ProviderKey: "abc"}))
	logins, err = s.GetLogins(u)
	require.NoError(t, err)
	assert.Empty(t, logins)
}

func TestFindByLogin(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	u := &entity.User{UserName: "rita", EmailAddress: "rita@example.com"}
	require.NoError(t, s.AddLogin(u, entity.UserLogin{Provider: "google", ProviderKey: "abc"}))
	require.NoError(t, s.Create(ctx, u))

	found, err := s.FindByLogin(ctx, entity.UserLogin{Provider: "google", ProviderKey: "abc"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, u.ID, found.ID)

	absent, err := s.FindByLogin(ctx, entity.UserLogin{Provider: "google", ProviderKey: "different"})
	require.NoError(t, err)
	assert.Nil(t, absent)
}

func TestAllWithPredicates(t *testing.T) {
	s, _ := newTestStore(entity.Role{ID: "r1", Name: "Admin"})
	ctx := context.Background()

	admin := &entity.User{UserName: "sam", EmailAddress: "sam@example.com"}
	require.NoError(t, s.AddToRole(ctx, admin, "Admin"))
	require.NoError(t, s.Create(ctx, admin))
	require.NoError(t, s.Create(ctx, &entity.User{UserName: "tess", EmailAddress: "tess@example.com"}))

	cur, err := s.All(ctx, InRole("Admin"))
	require.NoError(t, err)
	defer func() { _ = cur.Close(ctx) }()

	var ids []string
	for cur.Next(ctx) {
		ids = append(ids, cur.Current().ID)
	}
	require.NoError(t, cur.Err())
	assert.Equal(t, []string{admin.ID}, ids)

	// Restartable: a second call yields a fresh sequence.
	cur2, err := s.All(ctx)
	require.NoError(t, err)
	defer func() { _ = cur2.Close(ctx) }()
	count := 0
	for cur2.Next(ctx) {
		count++
	}
	require.NoError(t, cur2.Err())
	assert.Equal(t, 2, count)
}
