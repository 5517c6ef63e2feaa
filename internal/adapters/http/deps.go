package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/ridepass/internal/adapters/postgres"
	"github.com/samirrijal/ridepass/internal/adapters/valkey"
	"github.com/samirrijal/ridepass/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Hotspots  *usecases.HotspotService
	Providers *usecases.ProviderService
	Sessions  *usecases.SessionRegistry
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache
}
