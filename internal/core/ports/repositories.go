package ports

import (
	"context"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// HotspotRepository reads hotspots from the backing store.
type HotspotRepository interface {
	List(ctx context.Context) ([]domain.Hotspot, error)
	GetByID(ctx context.Context, id int64) (*domain.Hotspot, error)
}

// ProviderRepository persists providers.
type ProviderRepository interface {
	ListOnline(ctx context.Context) ([]domain.Provider, error)
	GetByID(ctx context.Context, id string) (*domain.Provider, error)
	UpdateLocation(ctx context.Context, id string, loc domain.Coordinate) error
	SetOnline(ctx context.Context, id string, online bool) error
}
