package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/pkg/helpers"
	"github.com/helioslabs/identity-store/pkg/response"
	"github.com/helioslabs/identity-store/pkg/validation"
)

const maxAvatarSize = 5 << 20

type UserHandler struct {
	Svc     *userapp.Service
	JWT     *helpers.JWTManager
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewUserHandler(svc *userapp.Service, jwt *helpers.JWTManager, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, JWT: jwt, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type loginRequest struct {
	// Identifier accepts a username or an email, any casing.
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

type providerLoginRequest struct {
	Provider    string `json:"provider" binding:"required"`
	ProviderKey string `json:"provider_key" binding:"required"`
}

// Login POST /api/login
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, pair, err := h.Svc.Login(c.Request.Context(), req.Identifier, req.Password)
	if err != nil {
		if errors.Is(err, userapp.ErrLockedOut) {
			response.Error[any](c, http.StatusTooManyRequests, "account temporarily locked", nil)
			return
		}
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// LoginWithProvider POST /api/login/provider
// Signs in through an external login binding previously linked to an account.
func (h *UserHandler) LoginWithProvider(c *gin.Context) {
	var req providerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	res, pair, err := h.Svc.LoginWithProvider(c.Request.Context(), req.Provider, req.ProviderKey)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "unknown provider identity", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Refresh POST /api/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie("refresh_token")
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry})
}

// Logout POST /api/logout (auth required)
func (h *UserHandler) Logout(c *gin.Context) {
	if uid := c.GetString("userID"); uid != "" {
		h.Svc.Logout(c.Request.Context(), uid)
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// GetProfile GET /api/profile (auth required)
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString("userID")
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	roles, _ := h.Svc.Store.GetRoles(u)
	logins, _ := h.Svc.Store.GetLogins(u)
	response.Success(c, http.StatusOK, gin.H{
		"id":                     u.ID,
		"username":               u.UserName,
		"email":                  u.EmailAddress,
		"email_confirmed":        u.EmailConfirmed,
		"phone_number":           u.PhoneNumber,
		"phone_number_confirmed": u.PhoneNumberConfirmed,
		"two_factor_enabled":     u.TwoFactorEnabled,
		"avatar_url":             h.Svc.AvatarURL(u),
		"roles":                  roles,
		"logins":                 logins,
		"created_at":             u.CreatedAt,
		"updated_at":             u.UpdatedAt,
	}, "profile", nil)
}

// ChangeEmail PUT /api/profile/email (auth required)
func (h *UserHandler) ChangeEmail(c *gin.Context) {
	uid := c.GetString("userID")
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Svc.ChangeEmail(c.Request.Context(), uid, req.Email)
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to change email", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"email": u.EmailAddress, "email_confirmed": u.EmailConfirmed}, "email updated", nil)
}

// ChangePassword PUT /api/profile/password (auth required)
func (h *UserHandler) ChangePassword(c *gin.Context) {
	uid := c.GetString("userID")
	var req struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.ChangePassword(c.Request.Context(), uid, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, userapp.ErrInvalidCredentials) {
			response.Error[any](c, http.StatusUnauthorized, "current password incorrect", nil)
			return
		}
		response.Error[any](c, http.StatusInternalServerError, "failed to change password", nil)
		return
	}
	// The stamp rotation invalidated the session; the client must sign in
	// again.
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, gin.H{"changed": true}, "password changed", nil)
}

// UploadAvatar POST /api/profile/avatar (auth required, multipart)
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	uid := c.GetString("userID")
	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "missing avatar file", nil)
		return
	}
	if fileHeader.Size > maxAvatarSize {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "avatar too large", nil)
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable avatar file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	url, err := h.Svc.UploadAvatar(c.Request.Context(), uid, f, fileHeader.Filename, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "avatar upload failed", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar updated", nil)
}

// LinkLogin POST /api/profile/logins (auth required)
func (h *UserHandler) LinkLogin(c *gin.Context) {
	uid := c.GetString("userID")
	var req providerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	login := entity.UserLogin{Provider: req.Provider, ProviderKey: req.ProviderKey}
	if err := h.Svc.LinkLogin(c.Request.Context(), uid, login); err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to link login", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"linked": true}, "login linked", nil)
}

// UnlinkLogin DELETE /api/profile/logins (auth required)
func (h *UserHandler) UnlinkLogin(c *gin.Context) {
	uid := c.GetString("userID")
	var req providerLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	login := entity.UserLogin{Provider: req.Provider, ProviderKey: req.ProviderKey}
	if err := h.Svc.UnlinkLogin(c.Request.Context(), uid, login); err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to unlink login", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"unlinked": true}, "login unlinked", nil)
}

// Search GET /api/users/search?q=... (auth required)
func (h *UserHandler) Search(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", nil)
		return
	}
	hits, err := h.Svc.SearchUsers(c.Request.Context(), q, 10)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}
