package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/internal/container"
	handlers "github.com/helioslabs/identity-store/internal/interface/http"
	"github.com/helioslabs/identity-store/internal/interface/middleware"
	"github.com/helioslabs/identity-store/pkg/helpers"
)

// AdminRole gates the management surface.
const AdminRole = "admin"

type AdminModule struct {
	Handler *handlers.AdminHandler
	Svc     *userapp.Service
	JWT     *helpers.JWTManager
}

func NewAdminModule(h *handlers.AdminHandler, svc *userapp.Service, jwt *helpers.JWTManager) *AdminModule {
	return &AdminModule{Handler: h, Svc: svc, JWT: jwt}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(
		middleware.Auth(container.GetRedis(), m.JWT),
		middleware.RequireRole(m.Svc, AdminRole),
		middleware.RateLimit(container.GetRedis(), 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		admin.GET("/users", m.Handler.ListUsers)
		admin.GET("/users/:id", m.Handler.GetUser)
		admin.DELETE("/users/:id", m.Handler.DeleteUser)
		admin.POST("/users/:id/roles", m.Handler.AddRole)
		admin.DELETE("/users/:id/roles", m.Handler.RemoveRole)
		admin.GET("/roles", m.Handler.ListRoles)
		admin.POST("/roles", m.Handler.CreateRole)
	}
}
