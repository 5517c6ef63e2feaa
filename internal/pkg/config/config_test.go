package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("ridepass-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15.0, cfg.Geofence.RadiusKm)
	assert.Equal(t, 10*time.Second, cfg.Geolocation.Timeout)
	assert.Equal(t, 3*time.Second, cfg.Simulator.Interval)
	assert.Equal(t, 2*time.Second, cfg.App.SplashDelay)
	assert.Equal(t, "ridepass-test", cfg.Telemetry.ServiceName)

	area := cfg.Geofence.Area()
	assert.Equal(t, 10.8155, area.Center.Lat)
	assert.Equal(t, 78.7047, area.Center.Lon)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RIDEPASS_GEOFENCE_RADIUS_KM", "25")
	t.Setenv("RIDEPASS_APP_DEMO_MODE", "true")
	t.Setenv("RIDEPASS_SIMULATOR_INTERVAL", "500ms")

	cfg, err := Load("ridepass-test")
	require.NoError(t, err)
	assert.Equal(t, 25.0, cfg.Geofence.RadiusKm)
	assert.True(t, cfg.App.DemoMode)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulator.Interval)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg, err := Load("ridepass-test")
	require.NoError(t, err)

	cfg.Server.Port = 0
	cfg.Geofence.CenterLat = 120
	cfg.Geolocation.Provider = "gps"
	cfg.Simulator.Interval = 0

	err = cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"server.port", "geofence center", "geolocation.provider", "simulator.interval"} {
		assert.True(t, strings.Contains(msg, want), "expected %q in %q", want, msg)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "ridepass", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/ridepass?sslmode=disable", d.DSN())
}
