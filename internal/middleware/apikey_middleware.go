// internal/middleware/apikey_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"pressroom-service/internal/domain/auth"
	"pressroom-service/internal/pkg/response"
	apikeyService "pressroom-service/internal/service/apikey"

	"github.com/gin-gonic/gin"
)

type APIKeyMiddleware struct {
	keys *apikeyService.Service
}

func NewAPIKeyMiddleware(keys *apikeyService.Service) *APIKeyMiddleware {
	return &APIKeyMiddleware{
		keys: keys,
	}
}

// MachineAuth admits automation clients holding a console API key in the
// X-Api-Key header. The key's identity is set on the context in the same
// shape Auth() uses, so downstream handlers see a regular principal scoped
// to the key's site and roles.
func (m *APIKeyMiddleware) MachineAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		plaintext := strings.TrimSpace(c.GetHeader("X-Api-Key"))
		if plaintext == "" {
			response.Error(c, http.StatusUnauthorized, "api key required", nil)
			return
		}

		key, err := m.keys.Verify(c.Request.Context(), plaintext)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid api key", nil)
			return
		}

		c.Set("user", &auth.UserInfo{
			ID:    "key:" + key.Prefix,
			Email: key.Name,
			Roles: []string(key.Roles),
		})
		c.Set("roles", []string(key.Roles))
		c.Set("selected_site", key.Site)
		c.Set("api_key", key)

		c.Next()
	}
}
