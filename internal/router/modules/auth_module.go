package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helioslabs/identity-store/internal/container"
	handlers "github.com/helioslabs/identity-store/internal/interface/http"
	"github.com/helioslabs/identity-store/internal/interface/middleware"
	"github.com/helioslabs/identity-store/pkg/helpers"
)

// AuthModule wires registration and the confirmation round-trips.

type AuthModule struct {
	Handler *handlers.AuthHandler
	JWT     *helpers.JWTManager
}

func NewAuthModule(h *handlers.AuthHandler, jwt *helpers.JWTManager) *AuthModule {
	return &AuthModule{Handler: h, JWT: jwt}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	registerLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	verifyConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/register", registerLimiter, m.Handler.Register)
	rg.POST("/auth/verify/confirm", verifyConfirmLimiter, m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(middleware.RateLimit(container.GetRedis(), 5, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/auth/verify/init", m.Handler.VerifyInit)
		auth.POST("/auth/phone/init", m.Handler.PhoneInit)
		auth.POST("/auth/phone/confirm", m.Handler.PhoneConfirm)
		auth.POST("/auth/2fa", m.Handler.TwoFactor)
	}
}
