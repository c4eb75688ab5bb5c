// Package config loads service configuration from defaults, an optional
// config.yaml, a local .env file, and the process environment.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/routecast/routecast/internal/database"
	"github.com/routecast/routecast/pkg/geo"
)

// Weather provider names.
const (
	WeatherProviderOpenMeteo      = "openmeteo"
	WeatherProviderOpenWeatherMap = "openweathermap"
)

// Config holds all configuration for the services.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Weather   WeatherConfig   `mapstructure:"weather"`
	Corridor  CorridorConfig  `mapstructure:"corridor"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Worker    WorkerConfig    `mapstructure:"worker"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

// TelemetryConfig holds OpenTelemetry configuration.
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
}

// DatabaseConfig holds PostgreSQL configuration. When disabled, saved
// predictions are kept in memory.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

// RoutingConfig holds OpenRouteService configuration.
type RoutingConfig struct {
	ORSAPIKey  string        `mapstructure:"ors_api_key"`
	ORSBaseURL string        `mapstructure:"ors_base_url"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
	// SnapRadius is the ORS endpoint snapping radius in meters; 0 keeps the
	// provider default.
	SnapRadius float64 `mapstructure:"snap_radius"`
}

// WeatherConfig selects and tunes the weather provider.
type WeatherConfig struct {
	Provider              string        `mapstructure:"provider"`
	OpenMeteoBaseURL      string        `mapstructure:"openmeteo_base_url"`
	OpenWeatherMapAPIKey  string        `mapstructure:"openweathermap_api_key"`
	OpenWeatherMapBaseURL string        `mapstructure:"openweathermap_base_url"`
	CurrentTTL            time.Duration `mapstructure:"current_ttl"`
	HourlyTTL             time.Duration `mapstructure:"hourly_ttl"`
	DailyTTL              time.Duration `mapstructure:"daily_ttl"`
	CacheGridSize         float64       `mapstructure:"cache_grid_size"`
}

// CorridorConfig tunes corridor sampling.
type CorridorConfig struct {
	BiasExponent   float64       `mapstructure:"bias_exponent"`
	Concurrency    int           `mapstructure:"concurrency"`
	HourlyHours    int           `mapstructure:"hourly_hours"`
	DailyDays      int           `mapstructure:"daily_days"`
	PredictTimeout time.Duration `mapstructure:"predict_timeout"`
	ResolveZones   bool          `mapstructure:"resolve_zones"`
}

// AuthConfig holds bearer token validation configuration.
type AuthConfig struct {
	JWTSigningKey string `mapstructure:"jwt_signing_key"`
	JWTIssuer     string `mapstructure:"jwt_issuer"`
	JWTAudience   string `mapstructure:"jwt_audience"`
}

// WorkerConfig holds prewarm worker configuration.
type WorkerConfig struct {
	ProjectID       string        `mapstructure:"project_id"`
	SubscriptionID  string        `mapstructure:"subscription_id"`
	Concurrency     int           `mapstructure:"concurrency"`
	PrewarmInterval time.Duration `mapstructure:"prewarm_interval"`
	// Targets is a semicolon separated list of "lat,lon" pairs.
	Targets string `mapstructure:"targets"`
}

// envBindings maps config keys to the environment variables that override
// them.
var envBindings = map[string]string{
	"server.port":             "APP_PORT",
	"server.env":              "APP_ENV",
	"server.read_timeout":     "APP_READ_TIMEOUT",
	"server.write_timeout":    "APP_WRITE_TIMEOUT",
	"server.idle_timeout":     "APP_IDLE_TIMEOUT",
	"server.shutdown_timeout": "APP_SHUTDOWN_TIMEOUT",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",

	"telemetry.enabled":       "OTEL_ENABLED",
	"telemetry.otlp_endpoint": "OTEL_EXPORTER_OTLP_ENDPOINT",
	"telemetry.sample_ratio":  "OTEL_TRACES_SAMPLER_ARG",

	"database.enabled":           "DB_ENABLED",
	"database.host":              "DB_HOST",
	"database.port":              "DB_PORT",
	"database.user":              "DB_USER",
	"database.password":          "DB_PASSWORD",
	"database.name":              "DB_NAME",
	"database.ssl_mode":          "DB_SSL_MODE",
	"database.max_open_conns":    "DB_MAX_OPEN_CONNS",
	"database.max_idle_conns":    "DB_MAX_IDLE_CONNS",
	"database.conn_max_lifetime": "DB_CONN_MAX_LIFETIME",
	"database.connect_timeout":   "DB_CONNECT_TIMEOUT",

	"routing.ors_api_key":  "ORS_API_KEY",
	"routing.ors_base_url": "ORS_BASE_URL",
	"routing.cache_ttl":    "ROUTING_CACHE_TTL",
	"routing.snap_radius":  "ORS_SNAP_RADIUS",

	"weather.provider":                "WEATHER_PROVIDER",
	"weather.openmeteo_base_url":      "OPENMETEO_BASE_URL",
	"weather.openweathermap_api_key":  "OPENWEATHERMAP_API_KEY",
	"weather.openweathermap_base_url": "OPENWEATHERMAP_BASE_URL",
	"weather.current_ttl":             "WEATHER_CURRENT_TTL",
	"weather.hourly_ttl":              "WEATHER_HOURLY_TTL",
	"weather.daily_ttl":               "WEATHER_DAILY_TTL",
	"weather.cache_grid_size":         "WEATHER_CACHE_GRID_SIZE",

	"corridor.bias_exponent":   "CORRIDOR_BIAS_EXPONENT",
	"corridor.concurrency":     "CORRIDOR_CONCURRENCY",
	"corridor.hourly_hours":    "CORRIDOR_HOURLY_HOURS",
	"corridor.daily_days":      "CORRIDOR_DAILY_DAYS",
	"corridor.predict_timeout": "CORRIDOR_PREDICT_TIMEOUT",
	"corridor.resolve_zones":   "CORRIDOR_RESOLVE_ZONES",

	"auth.jwt_signing_key": "JWT_SIGNING_KEY",
	"auth.jwt_issuer":      "JWT_ISSUER",
	"auth.jwt_audience":    "JWT_AUDIENCE",

	"worker.project_id":       "PUBSUB_PROJECT_ID",
	"worker.subscription_id":  "PUBSUB_SUBSCRIPTION_ID",
	"worker.concurrency":      "WORKER_CONCURRENCY",
	"worker.prewarm_interval": "WORKER_PREWARM_INTERVAL",
	"worker.targets":          "WORKER_PREWARM_TARGETS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.env", "development")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sample_ratio", 1.0)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "routecast")
	v.SetDefault("database.password", "localdev")
	v.SetDefault("database.name", "routecast")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.connect_timeout", 30*time.Second)

	v.SetDefault("routing.ors_base_url", "https://api.openrouteservice.org")
	v.SetDefault("routing.cache_ttl", 15*time.Minute)

	v.SetDefault("weather.provider", WeatherProviderOpenMeteo)
	v.SetDefault("weather.openmeteo_base_url", "https://api.open-meteo.com/v1")
	v.SetDefault("weather.openweathermap_base_url", "https://api.openweathermap.org")
	v.SetDefault("weather.current_ttl", 10*time.Minute)
	v.SetDefault("weather.hourly_ttl", 30*time.Minute)
	v.SetDefault("weather.daily_ttl", 3*time.Hour)
	v.SetDefault("weather.cache_grid_size", 0.1)

	v.SetDefault("corridor.bias_exponent", 0.8)
	v.SetDefault("corridor.concurrency", 4)
	v.SetDefault("corridor.hourly_hours", 48)
	v.SetDefault("corridor.daily_days", 16)
	v.SetDefault("corridor.predict_timeout", 20*time.Second)
	v.SetDefault("corridor.resolve_zones", true)

	v.SetDefault("worker.concurrency", 5)
	v.SetDefault("worker.prewarm_interval", 15*time.Minute)
}

// Load reads configuration. A .env file in the working directory is loaded
// into the environment first; variables already set win. config.yaml is
// read from the working directory or ./config when present.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}

	switch c.Weather.Provider {
	case WeatherProviderOpenMeteo:
	case WeatherProviderOpenWeatherMap:
		if c.Weather.OpenWeatherMapAPIKey == "" {
			errs = append(errs, errors.New("OPENWEATHERMAP_API_KEY is required for the openweathermap provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown weather provider %q", c.Weather.Provider))
	}

	if c.Corridor.BiasExponent <= 0 {
		errs = append(errs, fmt.Errorf("corridor bias exponent must be positive, got %v", c.Corridor.BiasExponent))
	}
	if c.Corridor.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("corridor concurrency must be positive, got %d", c.Corridor.Concurrency))
	}

	if _, err := c.Worker.PrewarmTargets(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// DatabaseConfig converts the database section for database.Connect.
func (c *Config) DatabaseConfig() database.Config {
	d := c.Database
	return database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Name,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}

// PrewarmTargets parses Targets.
func (w WorkerConfig) PrewarmTargets() ([]geo.Coordinate, error) {
	if strings.TrimSpace(w.Targets) == "" {
		return nil, nil
	}

	var out []geo.Coordinate
	for _, pair := range strings.Split(w.Targets, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		lat, lon, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("prewarm target %q: want lat,lon", pair)
		}
		latF, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
		if err != nil {
			return nil, fmt.Errorf("prewarm target %q: %w", pair, err)
		}
		lonF, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
		if err != nil {
			return nil, fmt.Errorf("prewarm target %q: %w", pair, err)
		}
		c := geo.NewCoordinate(lonF, latF)
		if !c.Valid() {
			return nil, fmt.Errorf("prewarm target %q out of range", pair)
		}
		out = append(out, c)
	}
	return out, nil
}
