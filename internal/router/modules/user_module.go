package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helioslabs/identity-store/internal/container"
	handlers "github.com/helioslabs/identity-store/internal/interface/http"
	"github.com/helioslabs/identity-store/internal/interface/middleware"
	"github.com/helioslabs/identity-store/pkg/helpers"
)

// Module wires the session and profile routes.
// Public: POST /api/login, /api/login/provider, /api/refresh
// Protected: logout, profile reads and writes, login bindings, search.

type Module struct {
	Handler *handlers.UserHandler
	JWT     *helpers.JWTManager
}

func New(h *handlers.UserHandler, jwt *helpers.JWTManager) *Module {
	return &Module{Handler: h, JWT: jwt}
}

func (m *Module) Register(rg *gin.RouterGroup) {
	// Credential endpoints carry tight per-IP limits.
	loginLimiter := middleware.RateLimit(container.GetRedis(), 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(container.GetRedis(), 60, time.Minute, middleware.KeyByIP(), nil)

	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/login/provider", loginLimiter, m.Handler.LoginWithProvider)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetRedis(), m.JWT))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile/email", m.Handler.ChangeEmail)
		auth.PUT("/profile/password", m.Handler.ChangePassword)
		auth.POST("/profile/avatar", m.Handler.UploadAvatar)
		auth.POST("/profile/logins", m.Handler.LinkLogin)
		auth.DELETE("/profile/logins", m.Handler.UnlinkLogin)
		auth.GET("/users/search", m.Handler.Search)
	}
}
