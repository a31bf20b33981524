package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	locitypes "github.com/FACorreiaa/loci-safety-api/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Upstream      UpstreamConfig
	Cache         CacheConfig
	Engine        EngineConfig
	Warmup        WarmupConfig
}

type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
}

// DatabaseConfig is optional; without a URL the embedded city table is used.
type DatabaseConfig struct {
	URL      string
	MaxConns int32
	MinConns int32
}

func (d DatabaseConfig) Enabled() bool { return d.URL != "" }

// DSN returns the connection string.
func (d DatabaseConfig) DSN() string { return d.URL }

type ObservabilityConfig struct {
	ServiceName    string
	LogFormat      string
	LogLevel       string
	MetricsEnabled bool
	TracingEnabled bool
	OTLPEndpoint   string
	SampleRatio    float64
}

type UpstreamConfig struct {
	NCRBBaseURL       string
	NCRBAPIKey        string
	NCRBRatePerSecond float64
	WeatherBaseURL    string
	WeatherAPIKey     string
	Timeout           time.Duration
	Retries           int
	BreakerMinSamples int
	BreakerCoolDown   time.Duration
}

type CacheConfig struct {
	CrimeTTL        time.Duration
	WeatherTTL      time.Duration
	HeatmapTTL      time.Duration
	StaleRetention  time.Duration
	CleanupInterval time.Duration
}

type EngineConfig struct {
	MockMode     bool
	RandomSeed   uint64
	PredictorURL string
}

type WarmupConfig struct {
	Schedule string
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnvInt("SERVER_PORT", 8000),
			ReadTimeout:        getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:       getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:    getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 100),
			AllowedOrigins:     getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DATABASE_MIN_CONNS", 1)),
		},
		Observability: ObservabilityConfig{
			ServiceName:    getEnv("SERVICE_NAME", "loci-safety-api"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
			TracingEnabled: getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint:   getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRatio:    getEnvFloat("OTEL_SAMPLE_RATIO", 1),
		},
		Upstream: UpstreamConfig{
			NCRBBaseURL:       getEnv("NCRB_BASE_URL", "https://api.ncrb.gov.in"),
			NCRBAPIKey:        getEnv("NCRB_API_KEY", ""),
			NCRBRatePerSecond: getEnvFloat("NCRB_RATE_PER_SECOND", 5),
			WeatherBaseURL:    getEnv("WEATHER_BASE_URL", "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline/"),
			WeatherAPIKey:     getEnv("WEATHER_API_KEY", ""),
			Timeout:           getEnvDuration("UPSTREAM_TIMEOUT", 4*time.Second),
			Retries:           getEnvInt("UPSTREAM_RETRIES", 1),
			BreakerMinSamples: getEnvInt("UPSTREAM_BREAKER_MIN_SAMPLES", 5),
			BreakerCoolDown:   getEnvDuration("UPSTREAM_BREAKER_COOLDOWN", 30*time.Second),
		},
		Cache: CacheConfig{
			CrimeTTL:        getEnvDuration("CACHE_TTL_CRIME", time.Hour),
			WeatherTTL:      getEnvDuration("CACHE_TTL_WEATHER", 30*time.Minute),
			HeatmapTTL:      getEnvDuration("CACHE_TTL_HEATMAP", 30*time.Second),
			StaleRetention:  getEnvDuration("CACHE_STALE_RETENTION", 6*time.Hour),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Engine: EngineConfig{
			MockMode:     getEnvBool("MOCK_MODE", false),
			RandomSeed:   uint64(getEnvInt("RANDOM_SEED", 20240917)),
			PredictorURL: getEnv("PREDICTOR_URL", ""),
		},
		Warmup: WarmupConfig{
			Schedule: getEnv("CACHE_WARMUP_SCHEDULE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the service cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if !c.Engine.MockMode {
		if c.Upstream.NCRBAPIKey == "" {
			problems = append(problems, "NCRB_API_KEY is required unless MOCK_MODE is enabled")
		}
		if c.Upstream.WeatherAPIKey == "" {
			problems = append(problems, "WEATHER_API_KEY is required unless MOCK_MODE is enabled")
		}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("SERVER_PORT %d is out of range", c.Server.Port))
	}
	if c.Upstream.Timeout <= 0 {
		problems = append(problems, "UPSTREAM_TIMEOUT must be positive")
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_TTL_CRIME":   c.Cache.CrimeTTL,
		"CACHE_TTL_WEATHER": c.Cache.WeatherTTL,
		"CACHE_TTL_HEATMAP": c.Cache.HeatmapTTL,
	} {
		if ttl <= 0 {
			problems = append(problems, name+" must be positive")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", locitypes.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
