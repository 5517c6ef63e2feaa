package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/ridepass/internal/adapters/geoip"
	"github.com/samirrijal/ridepass/internal/adapters/http"
	natsadapter "github.com/samirrijal/ridepass/internal/adapters/nats"
	"github.com/samirrijal/ridepass/internal/adapters/postgres"
	"github.com/samirrijal/ridepass/internal/adapters/valkey"
	"github.com/samirrijal/ridepass/internal/core/usecases"
	"github.com/samirrijal/ridepass/internal/pkg/config"
	"github.com/samirrijal/ridepass/internal/pkg/logging"
	"github.com/samirrijal/ridepass/internal/pkg/metrics"
	"github.com/samirrijal/ridepass/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("ridepass-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	// Valkey holds the durable demo flags, so it is required. The hotspot
	// cache shares the client.
	vk, err := valkey.Connect(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer vk.Close()
	cache := valkey.NewCache(vk, cfg.App.FlagPrefix)
	flags := valkey.NewFlagStore(vk)

	// NATS change notifications
	nc, err := natsadapter.Connect(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	changes := natsadapter.NewChangeFeed(nc, logger)
	defer changes.Close()

	locators, err := geoip.NewFactory(cfg.Geolocation)
	if err != nil {
		log.Fatalf("geolocation: %v", err)
	}

	// Use cases
	hotspotSvc := usecases.NewHotspotService(postgres.NewHotspotRepo(db), cache)
	providerSvc := usecases.NewProviderService(postgres.NewProviderRepo(db), changes, logger)

	sessions := usecases.NewSessionRegistry(usecases.SessionDeps{
		Hotspots:  hotspotSvc,
		Providers: providerSvc,
		Writer:    providerSvc,
		Changes:   changes,
		Flags:     flags,
	}, locators, usecases.RegistryConfig{
		Session: usecases.SessionConfig{
			Area:        cfg.Geofence.Area(),
			LaunchDemo:  cfg.App.DemoMode,
			GeoTimeout:  cfg.Geolocation.Timeout,
			SplashDelay: cfg.App.SplashDelay,
			Simulator: usecases.SimulatorConfig{
				Interval:  cfg.Simulator.Interval,
				JitterDeg: cfg.Simulator.JitterDeg,
			},
		},
		IdleTTL:    cfg.App.SessionIdleTTL,
		FlagPrefix: cfg.App.FlagPrefix,
	}, logger)
	go sessions.Run(ctx)

	go reportPoolStats(ctx, db)

	deps := &http.Dependencies{
		Hotspots:  hotspotSvc,
		Providers: providerSvc,
		Sessions:  sessions,
		NATS:      nc,
		DB:        db,
		Cache:     cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "RidePass API",
		ProxyHeader:  cfg.Server.ProxyHeader,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		ExposeHeaders:    "Location, Link, ETag, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "geolocation", cfg.Geolocation.Provider, "demo_mode", cfg.App.DemoMode)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Stops the reaper, which closes every session and its subscriptions.
	cancel()
	sessions.CloseAll()

	slog.Info("server stopped")
}

// reportPoolStats refreshes the database pool gauges until ctx ends.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		metrics.UpdateDBPoolMetrics(db.Stat())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
