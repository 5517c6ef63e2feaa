package domain

import (
	"fmt"
	"math"
)

// Coordinate is a WGS 84 position.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate checks that the coordinate lies within the valid latitude/longitude ranges.
func (c Coordinate) Validate() error {
	if !finite(c.Lat) || !finite(c.Lon) {
		return fmt.Errorf("%w: non-finite coordinate %f,%f", ErrInvalidCoordinate, c.Lat, c.Lon)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %f out of range -90..90", ErrInvalidCoordinate, c.Lat)
	}
	if c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %f out of range -180..180", ErrInvalidCoordinate, c.Lon)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// ServiceArea is the circular geofence inside which rides are offered.
type ServiceArea struct {
	Center   Coordinate `json:"center"`
	RadiusKm float64    `json:"radius_km"`
}

// NamedPlace is a coordinate with a human-readable label.
type NamedPlace struct {
	Name     string     `json:"name"`
	Location Coordinate `json:"location"`
}
