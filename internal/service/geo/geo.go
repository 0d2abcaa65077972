// internal/service/geo/geo.go
package geo

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"pressroom-service/internal/domain/geo"
	"pressroom-service/internal/pkg/refcache"
	"pressroom-service/internal/upstream"

	"go.uber.org/zap"
)

// Service serves the geographic reference dataset. The dataset is static
// and shared by every list/detail view that needs it, so it is fetched at
// most once per process; concurrent first reads share a single fetch, and a
// failed fetch degrades to an empty dataset instead of erroring consumers.
type Service struct {
	cache  *refcache.Cache[geo.Dataset]
	logger *zap.Logger
}

func NewService(client *upstream.Client, logger *zap.Logger) *Service {
	loader := func(ctx context.Context) (geo.Dataset, error) {
		resp, callErr := client.Do(ctx, http.MethodGet, "/static/geo/regions.json", nil, upstream.Options{})
		if callErr != nil {
			return geo.Dataset{}, fmt.Errorf("failed to fetch geo dataset: %w", callErr)
		}

		var dataset geo.Dataset
		if err := resp.Decode(&dataset); err != nil {
			return geo.Dataset{}, fmt.Errorf("failed to decode geo dataset: %w", err)
		}

		logger.Info("geo reference dataset loaded", zap.Int("regions", len(dataset.Regions)))
		return dataset, nil
	}

	return &Service{
		cache:  refcache.New(loader, geo.Dataset{Regions: []geo.Region{}}),
		logger: logger,
	}
}

// Regions returns every region, loading the dataset on first use.
func (s *Service) Regions(ctx context.Context) []geo.Region {
	return s.cache.EnsureLoaded(ctx).Regions
}

// ProvincesOf returns the provinces of a region (case-insensitive match).
// An unknown region yields an empty slice.
func (s *Service) ProvincesOf(ctx context.Context, region string) []geo.Province {
	for _, r := range s.cache.EnsureLoaded(ctx).Regions {
		if strings.EqualFold(r.Name, region) {
			return r.Provinces
		}
	}
	return []geo.Province{}
}

// FindProvince looks a province up by its code across all regions.
func (s *Service) FindProvince(ctx context.Context, code string) (geo.Province, bool) {
	for _, r := range s.cache.EnsureLoaded(ctx).Regions {
		for _, p := range r.Provinces {
			if strings.EqualFold(p.Code, code) {
				return p, true
			}
		}
	}
	return geo.Province{}, false
}

// Reset clears the cached dataset. Test hook.
func (s *Service) Reset() {
	s.cache.Reset()
}
