package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/ridepass/internal/pkg/metrics"
)

const requestTimeout = 15 * time.Second

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// 120 requests per minute per IP. The simulator writes through the
	// service layer, not HTTP, so it is never throttled here.
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		Next: func(c *fiber.Ctx) bool {
			return websocket.IsWebSocketUpgrade(c)
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	with := func(h fiber.Handler) fiber.Handler {
		return timeout.NewWithContext(h, requestTimeout)
	}

	v1.Get("/hotspots", with(ListHotspotsHandler(deps)))
	v1.Get("/hotspots/:id", with(GetHotspotHandler(deps)))

	v1.Get("/providers", with(ListProvidersHandler(deps)))
	v1.Get("/providers/:id", with(GetProviderHandler(deps)))
	v1.Put("/providers/:id/location", with(UpdateProviderLocationHandler(deps)))
	v1.Put("/providers/:id/online", with(SetProviderOnlineHandler(deps)))

	v1.Post("/sessions", with(CreateSessionHandler(deps)))
	v1.Get("/sessions/:id", with(GetSessionHandler(deps)))
	v1.Delete("/sessions/:id", with(DeleteSessionHandler(deps)))
	v1.Post("/sessions/:id/demo", with(EnableDemoHandler(deps)))
	v1.Delete("/sessions/:id/demo", with(ExitDemoHandler(deps)))
	v1.Post("/sessions/:id/retry", with(RetryHandler(deps)))
	v1.Post("/sessions/:id/events", with(SessionEventHandler(deps)))
	v1.Post("/sessions/:id/destination", with(ChooseDestinationHandler(deps)))

	app.Post("/graphql", with(GraphQLHandler(deps)))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket session stream
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/sessions/:id", websocket.New(WebSocketHandler(deps.Sessions)))
}
