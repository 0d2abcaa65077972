package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents the console session JWT claims.
type Claims struct {
	UserID         string   `json:"user_id,omitempty"`
	Email          string   `json:"email,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	Permissions    []string `json:"permissions,omitempty"`
	Site           string   `json:"site,omitempty"`
	IsTemp         bool     `json:"is_temp"`
	SessionPurpose string   `json:"session_purpose"` // access, otp_pending
	jwt.RegisteredClaims
}

// HasRole checks if the claims contain a specific role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission checks if the claims contain a specific permission
func (c *Claims) HasPermission(permission string) bool {
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
