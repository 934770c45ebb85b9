package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/genius-academy-api/internal/models"
	appErrors "github.com/noah-isme/genius-academy-api/pkg/errors"
	"github.com/noah-isme/genius-academy-api/pkg/response"
)

// Self lets a caller through when the :id route parameter is their own account.
const Self = "SELF"

// RBAC enforces role-based access control for routes. Entries are role kinds,
// admin sub-roles, or Self.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowSelf := false
	roles := make(map[models.RoleKind]struct{})
	adminRoles := make(map[models.AdminRoleKind]struct{})
	for _, a := range allowed {
		switch {
		case a == Self:
			allowSelf = true
		case models.RoleKind(a).Valid():
			roles[models.RoleKind(a)] = struct{}{}
		default:
			adminRoles[models.AdminRoleKind(a)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := roles[claims.Role]; ok {
			c.Next()
			return
		}
		if claims.Role == models.RoleAdmin {
			if _, ok := adminRoles[claims.AdminRole]; ok {
				c.Next()
				return
			}
		}
		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.AccountID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.RoleKind) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}

// AccountManagers admits the admin sub-roles allowed to manage accounts.
func AccountManagers(extra ...string) gin.HandlerFunc {
	allowed := []string{string(models.AdminSuper), string(models.AdminAcademic), string(models.AdminSecretary)}
	return RBAC(append(allowed, extra...)...)
}
