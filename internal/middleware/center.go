package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"labdesk/internal/domain"
)

// RequireCenterClaim returns middleware that rejects callers other than a
// superadmin whose token carries no center_id claim. It does not compare the
// claim with any test request; rows are scoped by the lab API key. It relies
// on AuthMiddleware having already set the claims.
func RequireCenterClaim() gin.HandlerFunc {
	return func(c *gin.Context) {
		if domain.UserRole(GetRole(c)) == domain.RoleSuperAdmin {
			c.Next()
			return
		}
		if GetCenterID(c) == "" {
			abortJSON(c, http.StatusForbidden, "FORBIDDEN", "collection center context required")
			return
		}
		c.Next()
	}
}
