// internal/handlers/apikey/apikey_handler.go
package apikey

import (
	"errors"
	"net/http"
	"strconv"

	"pressroom-service/internal/domain/apikey"
	"pressroom-service/internal/middleware"
	xerrors "pressroom-service/internal/pkg/errors"
	"pressroom-service/internal/pkg/response"
	apikeyService "pressroom-service/internal/service/apikey"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIKeyHandler manages console service keys. All endpoints are admin-only.
type APIKeyHandler struct {
	keys   *apikeyService.Service
	logger *zap.Logger
}

func NewAPIKeyHandler(keys *apikeyService.Service, logger *zap.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		keys:   keys,
		logger: logger,
	}
}

// Create issues a new key. The plaintext secret appears in this response
// only and is never stored.
func (h *APIKeyHandler) Create(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req apikey.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	created, err := h.keys.Issue(c.Request.Context(), &req, user.ID)
	if err != nil {
		h.logger.Error("api key issue failed",
			zap.String("name", req.Name),
			zap.Error(err),
		)
		response.Error(c, http.StatusInternalServerError, "failed to create api key", err)
		return
	}

	response.Success(c, http.StatusCreated, "api key created", gin.H{
		"key":       created.Key,
		"plaintext": created.Plaintext,
		"note":      "store this secret now, it will not be shown again",
	})
}

// List returns all keys, active and revoked.
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list api keys", err)
		return
	}

	response.Success(c, http.StatusOK, "api keys retrieved", keys)
}

// WhoAmI echoes the identity of the calling automation key so clients can
// check what a key resolves to. Machine-auth routes only.
func (h *APIKeyHandler) WhoAmI(c *gin.Context) {
	key, exists := c.Get("api_key")
	if !exists {
		response.Unauthorized(c, "api key required")
		return
	}

	response.Success(c, http.StatusOK, "api key identity", key)
}

// Revoke deactivates a key by id.
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "invalid key id", err)
		return
	}

	jti, _ := middleware.GetJTI(c)
	if err := h.keys.Revoke(c.Request.Context(), id, user.ID, user.Email, jti, c.ClientIP()); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			response.NotFound(c, "api key not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, "failed to revoke api key", err)
		return
	}

	response.Success(c, http.StatusOK, "api key revoked", nil)
}
