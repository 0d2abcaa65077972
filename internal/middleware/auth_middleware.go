// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"pressroom-service/internal/pkg/authz"
	"pressroom-service/internal/pkg/response"
	authService "pressroom-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

type AuthMiddleware struct {
	authService *authService.AuthService
}

func NewAuthMiddleware(svc *authService.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: svc,
	}
}

// Auth validates the console access token and rehydrates its session.
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, rec, err := m.authService.ValidateToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("jti", claims.ID)
		c.Set("user", rec.User)
		c.Set("roles", rec.User.Roles)
		c.Set("permissions", rec.User.Permissions)
		c.Set("selected_site", rec.SelectedSite)
		c.Set("session_record", rec)

		c.Next()
	}
}

// OTPPending admits only the temporary token issued while an OTP challenge
// is outstanding. Used by the verify/resend endpoints.
func (m *AuthMiddleware) OTPPending() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing challenge token", nil)
			return
		}

		claims, rec, err := m.authService.ValidatePendingToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired challenge token", err)
			return
		}

		c.Set("jti", claims.ID)
		c.Set("selected_site", rec.SelectedSite)
		c.Set("session_record", rec)

		c.Next()
	}
}

// RequireAccess gates a site-scoped action: the session's selected site must
// match the :site route param, the user must hold one of the allowed roles
// and the required permission. Each failed conjunct produces its own
// forbidden message so the console can tell "wrong site" from "missing
// permission". MUST be used after Auth().
func (m *AuthMiddleware) RequireAccess(roles []string, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "authentication required", nil)
			return
		}

		req := authz.Requirement{
			Site:       requiredSite(c),
			Roles:      roles,
			Permission: permission,
		}

		decision := authz.Evaluate(user, GetSelectedSite(c), req)
		switch decision {
		case authz.Granted:
			c.Next()
		case authz.DeniedSite:
			response.Error(c, http.StatusForbidden, "not authorized for this site", nil, gin.H{
				"required_site": req.Site,
				"selected_site": GetSelectedSite(c),
			})
		case authz.DeniedRole:
			response.Error(c, http.StatusForbidden, "insufficient role", nil, gin.H{
				"required_roles": roles,
				"user_roles":     user.Roles,
			})
		case authz.DeniedPermission:
			response.Error(c, http.StatusForbidden, "missing permission for this action", nil, gin.H{
				"required_permission": permission,
			})
		default:
			response.Forbidden(c, "forbidden")
		}
	}
}

// RequireRole requires at least one of the given roles. MUST be used after
// Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "authentication required", nil)
			return
		}

		if !authz.HasAnyRole(user, roles) {
			response.Error(c, http.StatusForbidden, "insufficient role", nil, gin.H{
				"required_roles": roles,
				"user_roles":     user.Roles,
			})
			return
		}

		c.Next()
	}
}

// AdminOnly composes Auth with the admin role requirement.
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(authz.RoleAdmin),
	}
}

// requiredSite is the site the request targets: the :site route param when
// present, otherwise the X-Site header.
func requiredSite(c *gin.Context) string {
	if site := c.Param("site"); site != "" {
		return site
	}
	return c.GetHeader("X-Site")
}

// extractToken extracts the bearer token from the Authorization header, with
// a query-param fallback for websocket handshakes.
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}
