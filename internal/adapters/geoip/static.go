package geoip

import (
	"context"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
)

// Static always reports the same position. It stands in for a device
// fix in development and kiosk deployments.
type Static struct {
	loc domain.Coordinate
}

// NewStatic creates a locator fixed at lat, lon.
func NewStatic(lat, lon float64) *Static {
	return &Static{loc: domain.Coordinate{Lat: lat, Lon: lon}}
}

func (s *Static) CurrentPosition(ctx context.Context, _ ports.PositionOptions) (domain.Coordinate, error) {
	if err := ctx.Err(); err != nil {
		return domain.Coordinate{}, err
	}
	return s.loc, nil
}
