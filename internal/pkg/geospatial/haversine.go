package geospatial

import (
	"math"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance in kilometres between a and b.
func DistanceKm(a, b domain.Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push h just past 1 for near-antipodal points.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKm * c
}

// IsWithinServiceArea reports whether point lies inside area. The boundary is inclusive.
func IsWithinServiceArea(point domain.Coordinate, area domain.ServiceArea) bool {
	return DistanceKm(point, area.Center) <= area.RadiusKm
}

// Offset moves c by the given degree deltas, clamping latitude and wrapping longitude.
func Offset(c domain.Coordinate, dLat, dLon float64) domain.Coordinate {
	lat := math.Max(-90, math.Min(90, c.Lat+dLat))
	lon := c.Lon + dLon
	if lon > 180 {
		lon -= 360
	} else if lon < -180 {
		lon += 360
	}
	return domain.Coordinate{Lat: lat, Lon: lon}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
