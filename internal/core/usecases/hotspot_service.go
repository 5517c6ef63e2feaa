package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

const hotspotsCacheKey = "hotspots:all"

// HotspotService handles hotspot-related business logic.
type HotspotService struct {
	hotspots ports.HotspotRepository
	cache    ports.CacheService
	cacheTTL int
}

// NewHotspotService creates a new HotspotService. cache may be nil.
func NewHotspotService(hotspots ports.HotspotRepository, cache ports.CacheService) *HotspotService {
	return &HotspotService{hotspots: hotspots, cache: cache, cacheTTL: 30}
}

// List returns every hotspot.
func (s *HotspotService) List(ctx context.Context) ([]domain.Hotspot, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, hotspotsCacheKey); err == nil {
			var hotspots []domain.Hotspot
			if err := json.Unmarshal(data, &hotspots); err == nil {
				metrics.CacheHits.WithLabelValues("hotspots").Inc()
				return hotspots, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("hotspots").Inc()
	}

	hotspots, err := s.hotspots.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list hotspots: %v", domain.ErrFetchFailed, err)
	}

	// Hotspot counts are aggregates; a short TTL keeps them close to live.
	if s.cache != nil {
		if data, err := json.Marshal(hotspots); err == nil {
			_ = s.cache.Set(ctx, hotspotsCacheKey, data, s.cacheTTL)
		}
	}

	return hotspots, nil
}

// GetByID returns a single hotspot.
func (s *HotspotService) GetByID(ctx context.Context, id int64) (*domain.Hotspot, error) {
	h, err := s.hotspots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, fmt.Errorf("hotspot %d: %w", id, domain.ErrNotFound)
	}
	return h, nil
}
