// internal/handlers/content/content_handler.go
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"pressroom-service/internal/middleware"
	"pressroom-service/internal/pkg/response"
	"pressroom-service/internal/service/search"
	"pressroom-service/internal/upstream"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContentHandler proxies the per-site editorial surfaces (articles,
// categories, banners, notifications) through the search service. Listing
// endpoints degrade to an empty page when the platform is down; detail
// endpoints surface the failure.
type ContentHandler struct {
	search *search.Service
	logger *zap.Logger
}

func NewContentHandler(searchService *search.Service, logger *zap.Logger) *ContentHandler {
	return &ContentHandler{
		search: searchService,
		logger: logger,
	}
}

// listQuery keeps only the filters the platform understands.
var allowedListParams = []string{
	"page", "per_page", "search", "status", "category", "author",
	"from", "to", "sort", "direction",
}

func listQuery(c *gin.Context) url.Values {
	out := url.Values{}
	for _, key := range allowedListParams {
		if v := c.Query(key); v != "" {
			out.Set(key, v)
		}
	}
	return out
}

// ========== Articles ==========

func (h *ContentHandler) ListArticles(c *gin.Context) {
	h.list(c, "articles")
}

func (h *ContentHandler) GetArticle(c *gin.Context) {
	h.detail(c, "articles")
}

// ========== Categories ==========

func (h *ContentHandler) ListCategories(c *gin.Context) {
	h.list(c, "categories")
}

func (h *ContentHandler) GetCategory(c *gin.Context) {
	h.detail(c, "categories")
}

// ========== Banners ==========

func (h *ContentHandler) ListBanners(c *gin.Context) {
	h.list(c, "banners")
}

func (h *ContentHandler) GetBanner(c *gin.Context) {
	h.detail(c, "banners")
}

// ========== Notifications ==========

func (h *ContentHandler) ListNotifications(c *gin.Context) {
	h.list(c, "notifications")
}

func (h *ContentHandler) GetNotification(c *gin.Context) {
	h.detail(c, "notifications")
}

func (h *ContentHandler) list(c *gin.Context, resource string) {
	rec, ok := middleware.GetSessionRecord(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	site := c.Param("site")

	page, err := h.search.List(c.Request.Context(), rec, fmt.Sprintf("/sites/%s/%s", site, resource), listQuery(c))
	if err != nil {
		writeProxyError(c, err)
		return
	}

	response.Success(c, http.StatusOK, resource+" retrieved", gin.H{
		"items":       page.Items,
		"total":       page.Total,
		"page":        page.Page,
		"total_pages": page.TotalPages,
	})
}

func (h *ContentHandler) detail(c *gin.Context, resource string) {
	rec, ok := middleware.GetSessionRecord(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	site := c.Param("site")
	id := c.Param("id")

	body, callErr := h.search.Detail(c.Request.Context(), rec, fmt.Sprintf("/sites/%s/%s/%s", site, resource, id))
	if callErr != nil {
		h.logger.Warn("detail fetch failed",
			zap.String("resource", resource),
			zap.String("site", site),
			zap.String("id", id),
			zap.Error(callErr),
		)
		writeProxyError(c, callErr)
		return
	}

	response.Success(c, http.StatusOK, resource+" retrieved", json.RawMessage(body))
}

func writeProxyError(c *gin.Context, err error) {
	var callErr *upstream.CallError
	if !errors.As(err, &callErr) {
		response.Error(c, http.StatusInternalServerError, "internal error", err)
		return
	}

	switch {
	case callErr.IsForbidden():
		response.Forbidden(c, "not allowed for this resource")
	case callErr.IsClient() && callErr.Status == http.StatusNotFound:
		response.NotFound(c, "not found")
	case callErr.IsClient():
		response.Error(c, http.StatusBadRequest, "request rejected by publishing platform", err)
	default:
		response.UpstreamUnavailable(c, "publishing platform unavailable, try again later", err)
	}
}
