package ports

import (
	"context"
	"time"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// Subscription is a handle on an open change-notification subscription.
type Subscription interface {
	Unsubscribe() error
}

// ChangeFeed publishes and delivers table change notifications.
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	// Subscribe calls onChange for every change to table until the
	// subscription is closed. The payload is not passed on.
	Subscribe(ctx context.Context, table string, onChange func()) (Subscription, error)
}

// PositionOptions mirrors the platform geolocation request options.
type PositionOptions struct {
	Timeout      time.Duration
	HighAccuracy bool
	// MaxAge is the oldest cached position accepted; zero demands a fresh fix.
	MaxAge time.Duration
}

// Geolocator resolves the rider's current position in a single attempt.
// Failures are reported as domain.ErrLocationUnavailable.
type Geolocator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (domain.Coordinate, error)
}

// FlagStore is a durable string key-value store. Get reports ok=false for a missing key.
type FlagStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
