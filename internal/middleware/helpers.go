// internal/middleware/helpers.go
package middleware

import (
	"pressroom-service/internal/domain/auth"
	"pressroom-service/internal/pkg/authz"
	"pressroom-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

// GetUser gets the authenticated user from context.
func GetUser(c *gin.Context) (*auth.UserInfo, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}

	user, ok := v.(*auth.UserInfo)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}

// GetJTI gets the session token id from context.
func GetJTI(c *gin.Context) (string, bool) {
	v, exists := c.Get("jti")
	if !exists {
		return "", false
	}

	jti, ok := v.(string)
	return jti, ok
}

// MustGetJTI gets the session token id or panics.
func MustGetJTI(c *gin.Context) string {
	jti, exists := GetJTI(c)
	if !exists {
		panic("jti not found in context")
	}
	return jti
}

// GetSelectedSite gets the session's active site, empty when unset.
func GetSelectedSite(c *gin.Context) string {
	v, exists := c.Get("selected_site")
	if !exists {
		return ""
	}

	site, _ := v.(string)
	return site
}

// GetSessionRecord gets the rehydrated session record.
func GetSessionRecord(c *gin.Context) (*session.Record, bool) {
	v, exists := c.Get("session_record")
	if !exists {
		return nil, false
	}

	rec, ok := v.(*session.Record)
	return rec, ok
}

// IsAuthenticated checks if the request carries an authenticated session.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := GetUser(c)
	return exists
}

// IsAdmin checks if the user holds the admin role.
func IsAdmin(c *gin.Context) bool {
	user, ok := GetUser(c)
	if !ok {
		return false
	}
	return authz.IsAdmin(user)
}
