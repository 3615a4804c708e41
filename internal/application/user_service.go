package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
	"github.com/helioslabs/identity-store/internal/store"
	"github.com/helioslabs/identity-store/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrLockedOut          = errors.New("account temporarily locked")
)

// AvatarClaimType is the claim under which the avatar object URL is stored.
// Profile attributes outside the identity schema live in the claim
// collection rather than on the aggregate itself.
const AvatarClaimType = "urn:avatar"

// Service drives the identity store the way a sign-in framework would:
// it owns password hashing, lockout policy, token issuance, and session
// bookkeeping. The store itself stays policy-free.
type Service struct {
	Store        *store.UserStore
	JWT          *helpers.JWTManager
	GCS          *storage.Client
	GCSBucket    string
	Redis        *redis.Client
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string

	// Lockout policy: after MaxAccessFailed consecutive failures the
	// account is locked for LockoutWindow.
	MaxAccessFailed int
	LockoutWindow   time.Duration
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func NewService(st *store.UserStore, jwt *helpers.JWTManager, gcs *storage.Client, gcsBucket string, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string, maxFailed int, lockoutWindow time.Duration) *Service {
	return &Service{
		Store:           st,
		JWT:             jwt,
		GCS:             gcs,
		GCSBucket:       gcsBucket,
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESUsersIndex:    esUsersIndex,
		MaxAccessFailed: maxFailed,
		LockoutWindow:   lockoutWindow,
	}
}

type RegisterInput struct {
	UserName string
	Email    string
	Password string
}

// Register creates a new account. The password is hashed here; the store
// receives only the opaque hash. A duplicate username or email surfaces as
// repository.ErrDuplicateIdentity from the store's backing indexes.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.User, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	u := &entity.User{UserName: in.UserName, EmailAddress: in.Email}
	if err := s.Store.SetPasswordHash(u, hash); err != nil {
		return nil, err
	}
	if err := s.Store.SetSecurityStamp(u, uuid.NewString()); err != nil {
		return nil, err
	}
	if err := s.Store.Create(ctx, u); err != nil {
		return nil, err
	}

	_ = s.indexUser(ctx, u)
	return u, nil
}

// Authenticate validates credentials against the stored hash and applies
// the lockout policy. The identifier may be a username or an email, in any
// casing.
func (s *Service) Authenticate(ctx context.Context, identifier, password string) (*entity.User, error) {
	u, err := s.Store.FindByUserName(ctx, identifier)
	if err != nil && !errors.Is(err, repository.ErrInvalidArgument) {
		return nil, err
	}
	if u == nil && strings.Contains(identifier, "@") {
		u, err = s.Store.FindByEmail(ctx, identifier)
		if err != nil {
			return nil, err
		}
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}

	// Lockout is data in the store; enforcing it against the clock
	// happens here.
	if u.LockoutEnabled && u.LockoutEndUTC != nil && u.LockoutEndUTC.After(time.Now().UTC()) {
		return nil, ErrLockedOut
	}

	if !helpers.CompareHashAndPassword(u.PasswordHash, password) {
		return nil, s.recordFailedAttempt(ctx, u)
	}

	// Successful sign-in clears the failure counter and any expired window.
	if u.AccessFailedCount > 0 || u.LockoutEndUTC != nil || u.LockoutEnabled {
		_ = s.Store.ResetAccessFailedCount(u)
		_ = s.Store.SetLockoutEnabled(u, false)
		_ = s.Store.SetLockoutEndUTC(u, nil)
		if err := s.Store.Update(ctx, u); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("clearing lockout state failed")
		}
	}
	return u, nil
}

func (s *Service) recordFailedAttempt(ctx context.Context, u *entity.User) error {
	n, err := s.Store.IncrementAccessFailedCount(ctx, u)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("incrementing failed count failed")
		}
		return ErrInvalidCredentials
	}
	if n >= s.MaxAccessFailed {
		fresh, err := s.Store.FindByID(ctx, u.ID)
		if err != nil || fresh == nil {
			return ErrInvalidCredentials
		}
		end := time.Now().UTC().Add(s.LockoutWindow)
		_ = s.Store.SetLockoutEnabled(fresh, true)
		_ = s.Store.SetLockoutEndUTC(fresh, &end)
		if err := s.Store.Update(ctx, fresh); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("setting lockout window failed")
		}
		return ErrLockedOut
	}
	return ErrInvalidCredentials
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
// The current security stamp is embedded in both tokens so a later rotation
// invalidates them on refresh.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, u.SecurityStamp, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, u.SecurityStamp, sid)
	if err != nil {
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := helpers.KeySession(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"username":   u.UserName,
			"email":      u.EmailAddress,
			"sid":        sid,
			"stamp":      u.SecurityStamp,
			"created_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

type LoginResponse struct {
	UserID   string `json:"user_id"`
	UserName string `json:"username"`
	Email    string `json:"email"`
}

func (s *Service) Login(ctx context.Context, identifier, password string) (*LoginResponse, TokenPair, error) {
	u, err := s.Authenticate(ctx, identifier, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &LoginResponse{UserID: u.ID, UserName: u.UserName, Email: u.EmailAddress}, pair, nil
}

// LoginWithProvider signs in through an external login binding.
func (s *Service) LoginWithProvider(ctx context.Context, provider, providerKey string) (*LoginResponse, TokenPair, error) {
	u, err := s.Store.FindByLogin(ctx, entity.UserLogin{Provider: provider, ProviderKey: providerKey})
	if err != nil {
		return nil, TokenPair{}, err
	}
	if u == nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &LoginResponse{UserID: u.ID, UserName: u.UserName, Email: u.EmailAddress}, pair, nil
}

// Refresh rotates the session and mints a new token pair. A refresh token
// carrying a stale security stamp or session id is rejected.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Store.FindByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if claims.SecurityStamp != u.SecurityStamp {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if s.Redis != nil {
		data, rErr := s.Redis.HGetAll(ctx, helpers.KeySession(u.ID)).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return TokenPair{}, "", err
	}
	return pair, u.ID, nil
}

func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis != nil {
		s.Redis.Del(ctx, helpers.KeySession(userID))
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ConfirmEmail marks the address confirmed and persists the aggregate.
func (s *Service) ConfirmEmail(ctx context.Context, userID string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.SetEmailConfirmed(u, true); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

// ChangeEmail stages the new address, drops the confirmed flag, and
// persists both in one replace.
func (s *Service) ChangeEmail(ctx context.Context, userID, email string) (*entity.User, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.SetEmail(u, email); err != nil {
		return nil, err
	}
	if err := s.Store.SetEmailConfirmed(u, false); err != nil {
		return nil, err
	}
	if err := s.Store.Update(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return u, nil
}

// SetPhone stages a new phone number, unconfirmed until the OTP round-trip
// completes.
func (s *Service) SetPhone(ctx context.Context, userID, phone string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.SetPhoneNumber(u, phone); err != nil {
		return err
	}
	if err := s.Store.SetPhoneNumberConfirmed(u, false); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

func (s *Service) ConfirmPhone(ctx context.Context, userID string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.SetPhoneNumberConfirmed(u, true); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

func (s *Service) SetTwoFactor(ctx context.Context, userID string, enabled bool) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.SetTwoFactorEnabled(u, enabled); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

// ChangePassword verifies the current password, stores the new hash, and
// rotates the security stamp so outstanding tokens stop refreshing.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !helpers.CompareHashAndPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, u, next)
}

// ResetPassword sets a new password without the current one; the caller is
// responsible for having verified a reset token first.
func (s *Service) ResetPassword(ctx context.Context, userID, next string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u, next)
}

func (s *Service) setPassword(ctx context.Context, u *entity.User, plain string) error {
	hash, err := helpers.HashPassword(plain)
	if err != nil {
		return err
	}
	if err := s.Store.SetPasswordHash(u, hash); err != nil {
		return err
	}
	if err := s.Store.SetSecurityStamp(u, uuid.NewString()); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

// AddRole grants a role by name. An unknown role name leaves the membership
// set unchanged, mirroring the store contract; the caller sees the resulting
// role list either way.
func (s *Service) AddRole(ctx context.Context, userID, roleName string) ([]string, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.AddToRole(ctx, u, roleName); err != nil {
		return nil, err
	}
	if err := s.Store.Update(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return s.Store.GetRoles(u)
}

func (s *Service) RemoveRole(ctx context.Context, userID, roleName string) ([]string, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.Store.RemoveFromRole(ctx, u, roleName); err != nil {
		return nil, err
	}
	if err := s.Store.Update(ctx, u); err != nil {
		return nil, err
	}
	_ = s.indexUser(ctx, u)
	return s.Store.GetRoles(u)
}

// LinkLogin binds an external provider identity. Re-linking an existing
// pair is a no-op.
func (s *Service) LinkLogin(ctx context.Context, userID string, login entity.UserLogin) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.AddLogin(u, login); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

func (s *Service) UnlinkLogin(ctx context.Context, userID string, login entity.UserLogin) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.RemoveLogin(u, login); err != nil {
		return err
	}
	return s.Store.Update(ctx, u)
}

// UploadAvatar stores the image in GCS and records the object URL as the
// avatar claim, replacing any previous one.
func (s *Service) UploadAvatar(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}

	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, id+ext))
	url, err := helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
	if err != nil {
		return "", err
	}

	claims, err := s.Store.GetClaims(u)
	if err != nil {
		return "", err
	}
	for _, c := range claims {
		if c.Type == AvatarClaimType {
			_ = s.Store.RemoveClaim(u, c)
		}
	}
	if err := s.Store.AddClaim(u, entity.UserClaim{Type: AvatarClaimType, Value: url}); err != nil {
		return "", err
	}
	if err := s.Store.Update(ctx, u); err != nil {
		return "", err
	}
	return url, nil
}

// AvatarURL reads the avatar claim off the aggregate, empty when unset.
func (s *Service) AvatarURL(u *entity.User) string {
	claims, err := s.Store.GetClaims(u)
	if err != nil {
		return ""
	}
	for _, c := range claims {
		if c.Type == AvatarClaimType {
			return c.Value
		}
	}
	return ""
}

// UserSummary is the admin-facing projection of an aggregate.
type UserSummary struct {
	ID             string   `json:"id"`
	UserName       string   `json:"username"`
	Email          string   `json:"email"`
	EmailConfirmed bool     `json:"email_confirmed"`
	LockedOut      bool     `json:"locked_out"`
	Roles          []string `json:"roles"`
}

// ListUsers walks the full aggregate set through the store's bulk read
// surface, optionally filtered.
func (s *Service) ListUsers(ctx context.Context, preds ...repository.Predicate) ([]UserSummary, error) {
	cur, err := s.Store.All(ctx, preds...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	now := time.Now().UTC()
	out := []UserSummary{}
	for cur.Next(ctx) {
		u := cur.Current()
		roles, _ := s.Store.GetRoles(u)
		out = append(out, UserSummary{
			ID:             u.ID,
			UserName:       u.UserName,
			Email:          u.EmailAddress,
			EmailConfirmed: u.EmailConfirmed,
			LockedOut:      u.LockoutEnabled && u.LockoutEndUTC != nil && u.LockoutEndUTC.After(now),
			Roles:          roles,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteUser removes the account and its session.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, u); err != nil {
		return err
	}
	s.Logout(ctx, userID)
	return nil
}

func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	roles, _ := s.Store.GetRoles(u)
	doc := map[string]any{
		"id":         u.ID,
		"username":   u.UserName,
		"email":      u.EmailAddress,
		"roles":      roles,
		"created_at": u.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": u.UpdatedAt.Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a simple multi_match search on username and email.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "username"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}
