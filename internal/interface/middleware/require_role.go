package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userapp "github.com/helioslabs/identity-store/internal/application"
	"github.com/helioslabs/identity-store/pkg/response"
)

// RequireRole gates a route group on a role membership. Runs after Auth, so
// userID is already in the context; membership is read off the aggregate's
// embedded role set.
func RequireRole(svc *userapp.Service, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString("userID")
		if uid == "" {
			response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		u, err := svc.GetProfile(c.Request.Context(), uid)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
			c.Abort()
			return
		}
		ok, err := svc.Store.IsInRole(u, role)
		if err != nil || !ok {
			response.Error[any](c, http.StatusForbidden, "insufficient role", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
