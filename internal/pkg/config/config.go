package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Geocoding GeocodingConfig `mapstructure:"geocoding"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Viewport  ViewportSection `mapstructure:"viewport"`
	Batch     BatchSection    `mapstructure:"batch"`
	Collector CollectorConfig `mapstructure:"collector"`
}

type ServerConfig struct {
	Port             int `mapstructure:"port"`
	ReadTimeout      int `mapstructure:"read_timeout"`
	WriteTimeout     int `mapstructure:"write_timeout"`
	RequestTimeoutMs int `mapstructure:"request_timeout_ms"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
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
	Addr       string `mapstructure:"addr"`
	JobTTLSecs int    `mapstructure:"job_ttl_secs"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
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

// GeocodingConfig configures the LocationIQ forward geocoder.
type GeocodingConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	TimeoutMs int    `mapstructure:"timeout_ms"`
}

// ProviderConfig configures the rental search and detail endpoints.
type ProviderConfig struct {
	SearchURL      string `mapstructure:"search_url"`
	DetailURL      string `mapstructure:"detail_url"`
	APIKey         string `mapstructure:"api_key"`
	SearchBodyPath string `mapstructure:"search_body_path"`
	TimeoutMs      int    `mapstructure:"timeout_ms"`
}

// ViewportSection holds the viewport tier ladder.
type ViewportSection struct {
	PrimaryWidthMeters  float64 `mapstructure:"primary_width_meters"`
	PrimaryHeightMeters float64 `mapstructure:"primary_height_meters"`
	SafetyMeters        float64 `mapstructure:"safety_meters"`
	ExpansionFactor     float64 `mapstructure:"expansion_factor"`
	FallbackZoom        int     `mapstructure:"fallback_zoom"`
	FallbackWidthPx     float64 `mapstructure:"fallback_width_px"`
	FallbackHeightPx    float64 `mapstructure:"fallback_height_px"`
	SearchZoom          int     `mapstructure:"search_zoom"`
	RefinementPath      string  `mapstructure:"refinement_path"`
	SearchByMap         bool    `mapstructure:"search_by_map"`
}

// BatchSection bounds detail fetching.
type BatchSection struct {
	MaxConcurrency int     `mapstructure:"max_concurrency"`
	MaxRetries     int     `mapstructure:"max_retries"`
	BaseDelayMs    int     `mapstructure:"base_delay_ms"`
	JitterFactor   float64 `mapstructure:"jitter_factor"`
}

// CollectorConfig configures the batch collector CLI.
type CollectorConfig struct {
	Parallelism int    `mapstructure:"parallelism"`
	OutputDir   string `mapstructure:"output_dir"`
}

// ViewportConfig maps the viewport section onto the resolver's tiers.
func (c *Config) ViewportConfig() usecases.ViewportConfig {
	v := c.Viewport
	return usecases.ViewportConfig{
		Primary: domain.MeterBoxSpec{
			WidthMeters:  v.PrimaryWidthMeters,
			HeightMeters: v.PrimaryHeightMeters,
			SafetyMeters: v.SafetyMeters,
		},
		ExpansionFactor: v.ExpansionFactor,
		Fallback: domain.ZoomViewportSpec{
			Zoom:         v.FallbackZoom,
			WidthPx:      v.FallbackWidthPx,
			HeightPx:     v.FallbackHeightPx,
			SafetyMeters: v.SafetyMeters,
		},
		SearchZoom:     v.SearchZoom,
		RefinementPath: v.RefinementPath,
		SearchByMap:    v.SearchByMap,
	}
}

// BatchConfig maps the batch section onto the fetcher's limits.
func (c *Config) BatchConfig() usecases.BatchConfig {
	return usecases.BatchConfig{
		MaxConcurrency: c.Batch.MaxConcurrency,
		MaxRetries:     c.Batch.MaxRetries,
		BaseDelay:      time.Duration(c.Batch.BaseDelayMs) * time.Millisecond,
		JitterFactor:   c.Batch.JitterFactor,
	}
}

// RequestTimeout is the default upstream timeout for one lookup.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutMs) * time.Millisecond
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: RENTALSCOPE_GEOCODING_API_KEY → geocoding.api_key
	v.SetEnvPrefix("RENTALSCOPE")
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

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("server.request_timeout_ms", 15000)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "rentalscope")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "rentalscope")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.job_ttl_secs", 86400)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "rentalscope-listings")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("geocoding.base_url", "https://us1.locationiq.com/v1/search")
	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("geocoding.timeout_ms", 10000)
	v.SetDefault("provider.search_url", "https://www.airbnb.com/api/v3/StaysSearch")
	v.SetDefault("provider.detail_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.search_body_path", "configs/search_body.json")
	v.SetDefault("provider.timeout_ms", 15000)

	dv := usecases.DefaultViewportConfig()
	v.SetDefault("viewport.primary_width_meters", dv.Primary.WidthMeters)
	v.SetDefault("viewport.primary_height_meters", dv.Primary.HeightMeters)
	v.SetDefault("viewport.safety_meters", dv.Primary.SafetyMeters)
	v.SetDefault("viewport.expansion_factor", dv.ExpansionFactor)
	v.SetDefault("viewport.fallback_zoom", dv.Fallback.Zoom)
	v.SetDefault("viewport.fallback_width_px", dv.Fallback.WidthPx)
	v.SetDefault("viewport.fallback_height_px", dv.Fallback.HeightPx)
	v.SetDefault("viewport.search_zoom", dv.SearchZoom)
	v.SetDefault("viewport.refinement_path", dv.RefinementPath)
	v.SetDefault("viewport.search_by_map", dv.SearchByMap)

	db := usecases.DefaultBatchConfig()
	v.SetDefault("batch.max_concurrency", db.MaxConcurrency)
	v.SetDefault("batch.max_retries", db.MaxRetries)
	v.SetDefault("batch.base_delay_ms", db.BaseDelay.Milliseconds())
	v.SetDefault("batch.jitter_factor", db.JitterFactor)

	v.SetDefault("collector.parallelism", 2)
	v.SetDefault("collector.output_dir", "out")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.RequestTimeoutMs <= 0 {
		errs = append(errs, "server.request_timeout_ms must be positive")
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
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}
	if c.Geocoding.BaseURL == "" {
		errs = append(errs, "geocoding.base_url is required")
	}
	if c.Geocoding.TimeoutMs <= 0 {
		errs = append(errs, "geocoding.timeout_ms must be positive")
	}
	if c.Provider.SearchURL == "" {
		errs = append(errs, "provider.search_url is required")
	}
	if c.Provider.TimeoutMs <= 0 {
		errs = append(errs, "provider.timeout_ms must be positive")
	}

	vp := c.Viewport
	if vp.PrimaryWidthMeters <= 0 || vp.PrimaryHeightMeters <= 0 {
		errs = append(errs, "viewport primary width and height must be positive")
	}
	if vp.SafetyMeters < 0 {
		errs = append(errs, "viewport.safety_meters must not be negative")
	}
	if vp.ExpansionFactor < 1 {
		errs = append(errs, fmt.Sprintf("viewport.expansion_factor must be >= 1, got %v", vp.ExpansionFactor))
	}
	if vp.FallbackZoom < 0 || vp.FallbackZoom > 22 {
		errs = append(errs, fmt.Sprintf("viewport.fallback_zoom must be 0-22, got %d", vp.FallbackZoom))
	}
	if vp.FallbackWidthPx <= 0 || vp.FallbackHeightPx <= 0 {
		errs = append(errs, "viewport fallback width and height must be positive")
	}

	if c.Batch.MaxConcurrency < 1 {
		errs = append(errs, "batch.max_concurrency must be >= 1")
	}
	if c.Batch.MaxRetries < 1 {
		errs = append(errs, "batch.max_retries must be >= 1")
	}
	if c.Batch.BaseDelayMs < 0 {
		errs = append(errs, "batch.base_delay_ms must not be negative")
	}
	if c.Batch.JitterFactor < 0 || c.Batch.JitterFactor > 1 {
		errs = append(errs, fmt.Sprintf("batch.jitter_factor must be within [0, 1], got %v", c.Batch.JitterFactor))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
