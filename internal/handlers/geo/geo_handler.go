// internal/handlers/geo/geo_handler.go
package geo

import (
	"net/http"

	"pressroom-service/internal/pkg/response"
	geoService "pressroom-service/internal/service/geo"

	"github.com/gin-gonic/gin"
)

type GeoHandler struct {
	geo *geoService.Service
}

func NewGeoHandler(geo *geoService.Service) *GeoHandler {
	return &GeoHandler{geo: geo}
}

// GetRegions returns the full region list. First call fetches the dataset,
// later calls are served from memory.
func (h *GeoHandler) GetRegions(c *gin.Context) {
	regions := h.geo.Regions(c.Request.Context())
	response.Success(c, http.StatusOK, "regions retrieved", regions)
}

// GetProvinces returns the provinces of one region.
func (h *GeoHandler) GetProvinces(c *gin.Context) {
	region := c.Param("region")
	provinces := h.geo.ProvincesOf(c.Request.Context(), region)
	response.Success(c, http.StatusOK, "provinces retrieved", provinces)
}

// Refresh drops the cached dataset so the next read refetches it.
func (h *GeoHandler) Refresh(c *gin.Context) {
	h.geo.Reset()
	response.Success(c, http.StatusOK, "geo cache cleared", nil)
}
