package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
	"github.com/samirrijal/ridepass/internal/core/ports"
)

// IPAPI resolves a rider's position from their IP address using an
// ip-api.com compatible JSON endpoint. IP geolocation is coarse; the
// HighAccuracy and MaxAge options cannot be honoured and every call is a
// fresh lookup.
type IPAPI struct {
	endpoint string
	ip       string
	client   *http.Client
}

// NewIPAPI creates a locator for the rider at ip.
func NewIPAPI(client *http.Client, endpoint, ip string) *IPAPI {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &IPAPI{endpoint: strings.TrimRight(endpoint, "/"), ip: ip, client: client}
}

type ipapiResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// CurrentPosition performs one lookup. Every failure wraps
// domain.ErrLocationUnavailable.
func (g *IPAPI) CurrentPosition(ctx context.Context, opts ports.PositionOptions) (domain.Coordinate, error) {
	ip := net.ParseIP(g.ip)
	if ip == nil {
		return domain.Coordinate{}, fmt.Errorf("%w: no client address", domain.ErrLocationUnavailable)
	}
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return domain.Coordinate{}, fmt.Errorf("%w: %s is not routable", domain.ErrLocationUnavailable, g.ip)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	url := fmt.Sprintf("%s/%s?fields=status,message,lat,lon", g.endpoint, ip.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Coordinate{}, errors.Join(domain.ErrLocationUnavailable, err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.Coordinate{}, errors.Join(domain.ErrLocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinate{}, fmt.Errorf("%w: lookup status %d: %s", domain.ErrLocationUnavailable, resp.StatusCode, body)
	}

	var out ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: decode lookup: %v", domain.ErrLocationUnavailable, err)
	}
	if out.Status != "success" {
		return domain.Coordinate{}, fmt.Errorf("%w: lookup %s: %s", domain.ErrLocationUnavailable, out.Status, out.Message)
	}
	return domain.Coordinate{Lat: out.Lat, Lon: out.Lon}, nil
}
