package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/internal/domain/entity"
	"github.com/helioslabs/identity-store/internal/domain/repository"
	"github.com/helioslabs/identity-store/internal/infrastructure/mongodb"
	"github.com/helioslabs/identity-store/internal/store"
	"github.com/helioslabs/identity-store/pkg/response"
	"github.com/helioslabs/identity-store/pkg/validation"
)

// AdminHandler exposes the management surface: user listing with filters,
// role catalog administration, and membership changes. Routes behind it are
// gated on the admin role by middleware.
type AdminHandler struct {
	Svc    *userapp.Service
	Roles  *mongodb.RoleCollection
	Logger *logrus.Logger
}

func NewAdminHandler(svc *userapp.Service, roles *mongodb.RoleCollection, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Roles: roles, Logger: logger}
}

// ListUsers GET /api/admin/users?role=&provider=&confirmed=&locked=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	var preds []repository.Predicate
	if role := c.Query("role"); role != "" {
		preds = append(preds, store.InRole(role))
	}
	if provider := c.Query("provider"); provider != "" {
		preds = append(preds, store.HasLoginProvider(provider))
	}
	if confirmed := c.Query("confirmed"); confirmed != "" {
		preds = append(preds, store.EmailConfirmed(confirmed == "true"))
	}
	if locked := c.Query("locked"); locked != "" {
		preds = append(preds, store.LockoutEnabled(locked == "true"))
	}

	users, err := h.Svc.ListUsers(c.Request.Context(), preds...)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "listing failed", nil)
		return
	}
	response.Success(c, http.StatusOK, users, "users", map[string]any{"count": len(users)})
}

// GetUser GET /api/admin/users/:id
func (h *AdminHandler) GetUser(c *gin.Context) {
	u, err := h.Svc.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	roles, _ := h.Svc.Store.GetRoles(u)
	claims, _ := h.Svc.Store.GetClaims(u)
	logins, _ := h.Svc.Store.GetLogins(u)
	response.Success(c, http.StatusOK, gin.H{
		"id":                  u.ID,
		"username":            u.UserName,
		"email":               u.EmailAddress,
		"email_confirmed":     u.EmailConfirmed,
		"lockout_enabled":     u.LockoutEnabled,
		"lockout_end_utc":     u.LockoutEndUTC,
		"access_failed_count": u.AccessFailedCount,
		"two_factor_enabled":  u.TwoFactorEnabled,
		"roles":               roles,
		"claims":              claims,
		"logins":              logins,
		"created_at":          u.CreatedAt,
		"updated_at":          u.UpdatedAt,
	}, "user", nil)
}

// DeleteUser DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.Svc.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success[any](c, http.StatusOK, gin.H{"deleted": true}, "user deleted", nil)
}

type roleMembershipRequest struct {
	Role string `json:"role" binding:"required"`
}

// AddRole POST /api/admin/users/:id/roles
func (h *AdminHandler) AddRole(c *gin.Context) {
	var req roleMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	roles, err := h.Svc.AddRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles}, "roles updated", nil)
}

// RemoveRole DELETE /api/admin/users/:id/roles
func (h *AdminHandler) RemoveRole(c *gin.Context) {
	var req roleMembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	roles, err := h.Svc.RemoveRole(c.Request.Context(), c.Param("id"), req.Role)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"roles": roles}, "roles updated", nil)
}

// ListRoles GET /api/admin/roles
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.Roles.All(c.Request.Context())
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "listing failed", nil)
		return
	}
	response.Success(c, http.StatusOK, roles, "roles", map[string]any{"count": len(roles)})
}

// CreateRole POST /api/admin/roles
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	role := &entity.Role{Name: req.Name}
	if err := h.Roles.Create(c.Request.Context(), role); err != nil {
		response.Error[any](c, http.StatusConflict, "role already exists", nil)
		return
	}
	response.Success(c, http.StatusCreated, role, "role created", nil)
}
