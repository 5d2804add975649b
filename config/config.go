package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Rate limit store backends
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config holds all application configuration
//
//nolint:govet // Field alignment optimization would reduce readability
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	RateLimit     RateLimitConfig
	Redis         RedisConfig
	Turnstile     TurnstileConfig
	HighLevel     HighLevelConfig
	EventTriggers EventTriggersConfig
	Features      FeaturesConfig
	Logging       LoggingConfig
	Observability ObservabilityConfig
	Profiling     ProfilingConfig
}

type ServerConfig struct {
	Port           string
	GinMode        string
	AppEnv         string
	AllowedOrigins []string
}

// DatabaseConfig configures the optional lead archive. An empty URL disables it.
type DatabaseConfig struct {
	URL        string
	MaxConns   int32
	MinConns   int32
	CACertPath string
}

// Enabled reports whether a lead archive database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

type RateLimitConfig struct {
	Store                string
	ContactMaxRequests   int
	ContactWindowSeconds int
	DefaultMaxRequests   int
	DefaultWindowSeconds int
	SweepIntervalSeconds int
	ErrorMessage         string
}

// ContactWindow returns the contact endpoint window as a duration
func (r RateLimitConfig) ContactWindow() time.Duration {
	return time.Duration(r.ContactWindowSeconds) * time.Second
}

// DefaultWindow returns the default window as a duration
func (r RateLimitConfig) DefaultWindow() time.Duration {
	return time.Duration(r.DefaultWindowSeconds) * time.Second
}

// SweepInterval returns how often expired in-memory entries are removed
func (r RateLimitConfig) SweepInterval() time.Duration {
	return time.Duration(r.SweepIntervalSeconds) * time.Second
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

type TurnstileConfig struct {
	SecretKey      string
	SiteKey        string
	VerifyURL      string
	TimeoutSeconds int
}

// HighLevelConfig configures the CRM contact sink
type HighLevelConfig struct {
	PITToken          string
	LocationID        string
	BaseURL           string
	APIVersion        string
	TimeoutSeconds    int
	RequestsPerSecond float64
	Burst             int
}

// MissingSetting returns the environment variable name of the first
// required CRM setting that is empty, or "" when the sink is fully configured
func (h HighLevelConfig) MissingSetting() string {
	if h.PITToken == "" {
		return "GHL_PIT_TOKEN"
	}
	if h.LocationID == "" {
		return "GHL_LOCATION_ID"
	}
	return ""
}

type EventTriggersConfig struct {
	LeadCreatedTriggerURL string
}

type FeaturesConfig struct {
	TestFormEnabled bool
}

type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type ObservabilityConfig struct {
	AlloyEndpoint     string
	ServiceName       string
	ServiceNamespace  string
	ServiceVersion    string
	ServiceInstanceID string
}

type ProfilingConfig struct {
	Enabled               bool
	Endpoint              string
	AppName               string
	SampleTypes           string
	UploadIntervalSeconds int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("PORT", "8081")
	v.SetDefault("GIN_MODE", "release")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("ALLOWED_CORS_ORIGINS", "https://brightpath.agency,https://www.brightpath.agency")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 1)
	v.SetDefault("RATE_LIMIT_STORE", RateLimitStoreMemory)
	v.SetDefault("CONTACT_RATE_LIMIT_MAX_REQUESTS", 5)
	v.SetDefault("CONTACT_RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("DEFAULT_RATE_LIMIT_MAX_REQUESTS", 10)
	v.SetDefault("DEFAULT_RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_SWEEP_INTERVAL_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_ERROR_MESSAGE", "Too many requests. Please try again later.")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "brightpath:ratelimit:")
	v.SetDefault("TURNSTILE_VERIFY_URL", "https://challenges.cloudflare.com/turnstile/v0/siteverify")
	v.SetDefault("TURNSTILE_TIMEOUT_SECONDS", 10)
	v.SetDefault("GHL_BASE_URL", "https://services.leadconnectorhq.com")
	v.SetDefault("GHL_API_VERSION", "2021-07-28")
	v.SetDefault("GHL_TIMEOUT_SECONDS", 15)
	v.SetDefault("GHL_REQUESTS_PER_SECOND", 10)
	v.SetDefault("GHL_BURST", 20)
	v.SetDefault("TEST_FORM_ENABLED", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DIR", "/app/logs")
	v.SetDefault("LOG_MAX_SIZE_MB", 100)
	v.SetDefault("LOG_MAX_BACKUPS", 5)
	v.SetDefault("LOG_MAX_AGE_DAYS", 14)
	v.SetDefault("O11Y_EXPORTER_ENDPOINT", "alloy:4318") // OTLP over HTTP
	v.SetDefault("O11Y_BE_SERVICE_NAME", "brightpath-api")
	v.SetDefault("O11Y_SERVICE_NAMESPACE", "brightpath")
	v.SetDefault("O11Y_BE_SERVICE_VERSION", "1.0.0")
	v.SetDefault("O11Y_PROFILING_ENABLED", false)
	v.SetDefault("O11Y_PROFILING_APP_NAME", "brightpath-api")
	v.SetDefault("O11Y_PROFILING_SAMPLE_TYPES", "cpu,alloc_space,alloc_objects,goroutines,mutex,block")
	v.SetDefault("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS", 15)

	// Automatically read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	_ = v.ReadInConfig() //nolint:errcheck // Ignore error if .env file doesn't exist

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("PORT"),
			GinMode:        v.GetString("GIN_MODE"),
			AppEnv:         v.GetString("APP_ENV"),
			AllowedOrigins: splitList(v.GetString("ALLOWED_CORS_ORIGINS")),
		},
		Database: DatabaseConfig{
			URL:        v.GetString("DATABASE_URL"),
			MaxConns:   v.GetInt32("DB_MAX_CONNS"),
			MinConns:   v.GetInt32("DB_MIN_CONNS"),
			CACertPath: v.GetString("DATABASE_CA_CERT"),
		},
		RateLimit: RateLimitConfig{
			Store:                strings.ToLower(strings.TrimSpace(v.GetString("RATE_LIMIT_STORE"))),
			ContactMaxRequests:   v.GetInt("CONTACT_RATE_LIMIT_MAX_REQUESTS"),
			ContactWindowSeconds: v.GetInt("CONTACT_RATE_LIMIT_WINDOW_SECONDS"),
			DefaultMaxRequests:   v.GetInt("DEFAULT_RATE_LIMIT_MAX_REQUESTS"),
			DefaultWindowSeconds: v.GetInt("DEFAULT_RATE_LIMIT_WINDOW_SECONDS"),
			SweepIntervalSeconds: v.GetInt("RATE_LIMIT_SWEEP_INTERVAL_SECONDS"),
			ErrorMessage:         v.GetString("RATE_LIMIT_ERROR_MESSAGE"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("REDIS_ADDR"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		Turnstile: TurnstileConfig{
			SecretKey:      v.GetString("TURNSTILE_SECRET_KEY"),
			SiteKey:        v.GetString("NEXT_PUBLIC_TURNSTILE_SITE_KEY"),
			VerifyURL:      v.GetString("TURNSTILE_VERIFY_URL"),
			TimeoutSeconds: v.GetInt("TURNSTILE_TIMEOUT_SECONDS"),
		},
		HighLevel: HighLevelConfig{
			PITToken:          v.GetString("GHL_PIT_TOKEN"),
			LocationID:        v.GetString("GHL_LOCATION_ID"),
			BaseURL:           strings.TrimRight(v.GetString("GHL_BASE_URL"), "/"),
			APIVersion:        v.GetString("GHL_API_VERSION"),
			TimeoutSeconds:    v.GetInt("GHL_TIMEOUT_SECONDS"),
			RequestsPerSecond: v.GetFloat64("GHL_REQUESTS_PER_SECOND"),
			Burst:             v.GetInt("GHL_BURST"),
		},
		EventTriggers: EventTriggersConfig{
			LeadCreatedTriggerURL: v.GetString("LEAD_CREATED_TRIGGER_URL"),
		},
		Features: FeaturesConfig{
			TestFormEnabled: v.GetBool("TEST_FORM_ENABLED"),
		},
		Logging: LoggingConfig{
			Level:      v.GetString("LOG_LEVEL"),
			Dir:        v.GetString("LOG_DIR"),
			MaxSizeMB:  v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOG_MAX_BACKUPS"),
			MaxAgeDays: v.GetInt("LOG_MAX_AGE_DAYS"),
		},
		Observability: ObservabilityConfig{
			AlloyEndpoint:     v.GetString("O11Y_EXPORTER_ENDPOINT"),
			ServiceName:       v.GetString("O11Y_BE_SERVICE_NAME"),
			ServiceNamespace:  v.GetString("O11Y_SERVICE_NAMESPACE"),
			ServiceVersion:    v.GetString("O11Y_BE_SERVICE_VERSION"),
			ServiceInstanceID: v.GetString("SERVICE_INSTANCE_ID"),
		},
		Profiling: ProfilingConfig{
			Enabled:               v.GetBool("O11Y_PROFILING_ENABLED"),
			Endpoint:              v.GetString("O11Y_PROFILING_ENDPOINT"),
			AppName:               v.GetString("O11Y_PROFILING_APP_NAME"),
			SampleTypes:           v.GetString("O11Y_PROFILING_SAMPLE_TYPES"),
			UploadIntervalSeconds: v.GetInt("O11Y_PROFILING_UPLOAD_INTERVAL_SECONDS"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// splitList parses a comma-separated list, dropping empty items
func splitList(value string) []string {
	items := []string{}
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Validate checks if required configuration values are set.
// Turnstile and HighLevel credentials are checked per request instead, so a
// missing secret surfaces as a server error on the contact endpoint.
func (c *Config) Validate() error {
	// Server configuration
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	if len(c.Server.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_CORS_ORIGINS is required")
	}

	// Rate limiting
	switch c.RateLimit.Store {
	case RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required when RATE_LIMIT_STORE=redis")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be %q or %q, got %q", RateLimitStoreMemory, RateLimitStoreRedis, c.RateLimit.Store)
	}
	if c.RateLimit.ContactMaxRequests <= 0 || c.RateLimit.ContactWindowSeconds <= 0 {
		return fmt.Errorf("contact rate limit requires positive max requests and window")
	}
	if c.RateLimit.DefaultMaxRequests <= 0 || c.RateLimit.DefaultWindowSeconds <= 0 {
		return fmt.Errorf("default rate limit requires positive max requests and window")
	}
	if c.RateLimit.Store == RateLimitStoreMemory && c.RateLimit.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("RATE_LIMIT_SWEEP_INTERVAL_SECONDS must be positive")
	}

	if c.Database.Enabled() && c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("DB_MAX_CONNS must not be lower than DB_MIN_CONNS")
	}

	if c.Profiling.Enabled && c.Profiling.Endpoint == "" {
		return fmt.Errorf("O11Y_PROFILING_ENDPOINT is required when profiling is enabled")
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Server.AppEnv == "development" || c.Server.GinMode == "debug"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.AppEnv == "production"
}

// TestFormEnabled reports whether the quick-capture test form route is served
func (c *Config) TestFormEnabled() bool {
	return c.Features.TestFormEnabled || c.IsDevelopment()
}
