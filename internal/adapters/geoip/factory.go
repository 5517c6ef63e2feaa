package geoip

import (
	"fmt"
	"net/http"

	"github.com/samirrijal/ridepass/internal/core/ports"
	"github.com/samirrijal/ridepass/internal/pkg/config"
)

// NewFactory returns the per-rider locator constructor selected by cfg.
func NewFactory(cfg config.GeolocationConfig) (func(remoteIP string) ports.Geolocator, error) {
	switch cfg.Provider {
	case "static":
		s := NewStatic(cfg.StaticLat, cfg.StaticLon)
		return func(string) ports.Geolocator { return s }, nil
	case "ipapi":
		client := &http.Client{Timeout: cfg.Timeout}
		return func(ip string) ports.Geolocator {
			return NewIPAPI(client, cfg.Endpoint, ip)
		}, nil
	default:
		return nil, fmt.Errorf("unknown geolocation provider %q", cfg.Provider)
	}
}
