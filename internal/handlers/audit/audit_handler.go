// internal/handlers/audit/audit_handler.go
package audit

import (
	"net/http"
	"strconv"

	"pressroom-service/internal/pkg/response"
	"pressroom-service/internal/repository/postgres"

	"github.com/gin-gonic/gin"
)

const defaultLimit = 50
const maxLimit = 500

// AuditHandler exposes the security audit trail. Admin only.
type AuditHandler struct {
	repo *postgres.AuditRepository
}

func NewAuditHandler(repo *postgres.AuditRepository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

// ListRecent returns the newest audit events across all actors.
func (h *AuditHandler) ListRecent(c *gin.Context) {
	events, err := h.repo.ListRecent(c.Request.Context(), limitParam(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list audit events", err)
		return
	}

	response.Success(c, http.StatusOK, "audit events retrieved", events)
}

// ListForActor returns the newest audit events for a single user.
func (h *AuditHandler) ListForActor(c *gin.Context) {
	actorID := c.Param("user_id")
	if actorID == "" {
		response.Error(c, http.StatusBadRequest, "user id is required", nil)
		return
	}

	events, err := h.repo.ListForActor(c.Request.Context(), actorID, limitParam(c))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to list audit events", err)
		return
	}

	response.Success(c, http.StatusOK, "audit events retrieved", events)
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultLimit
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
