package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/exstem-quiz/internal/model"
	"github.com/stemsi/exstem-quiz/internal/response"
)

// RequireRole checks that the authenticated caller holds one of roles.
// Services repeat the check; this rejects early and with a precise code.
func RequireRole(roles ...model.Role) gin.HandlerFunc {
	code := roleCode(roles)
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		if slices.Contains(roles, claims.Role) {
			c.Next()
			return
		}

		response.AbortFail(c, http.StatusForbidden, code)
	}
}

// RequireStudent allows students only.
func RequireStudent() gin.HandlerFunc { return RequireRole(model.RoleStudent) }

// RequireStaff allows teachers and admins.
func RequireStaff() gin.HandlerFunc { return RequireRole(model.RoleTeacher, model.RoleAdmin) }

// RequireAdmin allows admins only.
func RequireAdmin() gin.HandlerFunc { return RequireRole(model.RoleAdmin) }

func roleCode(roles []model.Role) response.ErrCode {
	switch {
	case len(roles) == 1 && roles[0] == model.RoleStudent:
		return response.ErrStudentAccessOnly
	case len(roles) == 1 && roles[0] == model.RoleAdmin:
		return response.ErrAdminAccessOnly
	case !slices.Contains(roles, model.RoleStudent):
		return response.ErrStaffAccessOnly
	}
	return response.ErrForbidden
}
