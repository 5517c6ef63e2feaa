package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/ridepass/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Valkey      ValkeyConfig      `mapstructure:"valkey"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Log         LogConfig         `mapstructure:"log"`
	Geofence    GeofenceConfig    `mapstructure:"geofence"`
	Geolocation GeolocationConfig `mapstructure:"geolocation"`
	Simulator   SimulatorConfig   `mapstructure:"simulator"`
	App         AppConfig         `mapstructure:"app"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
	// ProxyHeader names the header carrying the client IP behind a proxy.
	// Geolocation by IP needs it when the API is not directly exposed.
	ProxyHeader string `mapstructure:"proxy_header"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GeofenceConfig is the service area riders must be inside.
type GeofenceConfig struct {
	CenterLat float64 `mapstructure:"center_lat"`
	CenterLon float64 `mapstructure:"center_lon"`
	RadiusKm  float64 `mapstructure:"radius_km"`
}

// Area returns the configured service area.
func (g GeofenceConfig) Area() domain.ServiceArea {
	return domain.ServiceArea{
		Center:   domain.Coordinate{Lat: g.CenterLat, Lon: g.CenterLon},
		RadiusKm: g.RadiusKm,
	}
}

// GeolocationConfig selects how a rider's position is resolved.
// Provider is "ipapi" (lookup by client IP) or "static" (fixed lat/lon).
type GeolocationConfig struct {
	Provider  string        `mapstructure:"provider"`
	Endpoint  string        `mapstructure:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout"`
	StaticLat float64       `mapstructure:"static_lat"`
	StaticLon float64       `mapstructure:"static_lon"`
}

type SimulatorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	JitterDeg float64       `mapstructure:"jitter_deg"`
}

// AppConfig holds rider-session behaviour.
type AppConfig struct {
	SplashDelay    time.Duration `mapstructure:"splash_delay"`
	// DemoMode grants every new session demo access, as if launched with ?demo=true.
	DemoMode       bool          `mapstructure:"demo_mode"`
	SessionIdleTTL time.Duration `mapstructure:"session_idle_ttl"`
	FlagPrefix     string        `mapstructure:"flag_prefix"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("server.proxy_header", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "ridepass")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "ridepass")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("geofence.center_lat", 10.8155)
	v.SetDefault("geofence.center_lon", 78.7047)
	v.SetDefault("geofence.radius_km", 15.0)
	v.SetDefault("geolocation.provider", "ipapi")
	v.SetDefault("geolocation.endpoint", "http://ip-api.com/json")
	v.SetDefault("geolocation.timeout", 10*time.Second)
	v.SetDefault("geolocation.static_lat", 10.8155)
	v.SetDefault("geolocation.static_lon", 78.7047)
	v.SetDefault("simulator.interval", 3*time.Second)
	v.SetDefault("simulator.jitter_deg", 0.001)
	v.SetDefault("app.splash_delay", 2*time.Second)
	v.SetDefault("app.demo_mode", false)
	v.SetDefault("app.session_idle_ttl", 30*time.Minute)
	v.SetDefault("app.flag_prefix", "ridepass")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: RIDEPASS_GEOFENCE_RADIUS_KM → geofence.radius_km
	v.SetEnvPrefix("RIDEPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if err := c.Geofence.Area().Center.Validate(); err != nil {
		errs = append(errs, "geofence center: "+err.Error())
	}
	if c.Geofence.RadiusKm < 0 {
		errs = append(errs, fmt.Sprintf("geofence.radius_km must not be negative, got %g", c.Geofence.RadiusKm))
	}
	switch c.Geolocation.Provider {
	case "ipapi":
		if c.Geolocation.Endpoint == "" {
			errs = append(errs, "geolocation.endpoint is required for the ipapi provider")
		}
	case "static":
	default:
		errs = append(errs, fmt.Sprintf("geolocation.provider must be ipapi or static, got %q", c.Geolocation.Provider))
	}
	if c.Geolocation.Timeout <= 0 {
		errs = append(errs, "geolocation.timeout must be positive")
	}
	if c.Simulator.Interval <= 0 {
		errs = append(errs, "simulator.interval must be positive")
	}
	if c.Simulator.JitterDeg < 0 {
		errs = append(errs, "simulator.jitter_deg must not be negative")
	}
	if c.App.SplashDelay < 0 {
		errs = append(errs, "app.splash_delay must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
