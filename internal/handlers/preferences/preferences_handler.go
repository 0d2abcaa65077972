// internal/handlers/preferences/preferences_handler.go
package preferences

import (
	"encoding/json"
	"net/http"

	"pressroom-service/internal/middleware"
	"pressroom-service/internal/pkg/response"
	prefService "pressroom-service/internal/service/preferences"

	"github.com/gin-gonic/gin"
)

type PreferencesHandler struct {
	prefs *prefService.Store
}

func NewPreferencesHandler(prefs *prefService.Store) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

// GetArticleFilters returns the saved article list filters for the current
// user, "{}" when none were saved.
func (h *PreferencesHandler) GetArticleFilters(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	filters, err := h.prefs.ArticleFilters(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load filters", err)
		return
	}

	response.Success(c, http.StatusOK, "filters retrieved", filters)
}

// SaveArticleFilters stores the caller's article list filters verbatim.
func (h *PreferencesHandler) SaveArticleFilters(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var filters json.RawMessage
	if err := c.ShouldBindJSON(&filters); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.prefs.SaveArticleFilters(c.Request.Context(), user.ID, filters); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to save filters", err)
		return
	}

	response.Success(c, http.StatusOK, "filters saved", nil)
}

type themeRequest struct {
	Theme string `json:"theme" binding:"required,oneof=light dark"`
}

// GetTheme returns the caller's console theme, defaulting to light.
func (h *PreferencesHandler) GetTheme(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	theme, err := h.prefs.Theme(c.Request.Context(), user.ID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to load theme", err)
		return
	}

	response.Success(c, http.StatusOK, "theme retrieved", gin.H{"theme": theme})
}

// SaveTheme stores the caller's console theme.
func (h *PreferencesHandler) SaveTheme(c *gin.Context) {
	user, ok := middleware.GetUser(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}

	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	if err := h.prefs.SaveTheme(c.Request.Context(), user.ID, req.Theme); err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to save theme", err)
		return
	}

	response.Success(c, http.StatusOK, "theme saved", gin.H{"theme": req.Theme})
}
