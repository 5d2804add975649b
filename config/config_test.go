package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8081",
			AllowedOrigins: []string{"https://brightpath.agency"},
		},
		RateLimit: RateLimitConfig{
			Store:                RateLimitStoreMemory,
			ContactMaxRequests:   5,
			ContactWindowSeconds: 60,
			DefaultMaxRequests:   10,
			DefaultWindowSeconds: 60,
			SweepIntervalSeconds: 60,
		},
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		expected bool
	}{
		{
			name:     "development environment",
			config:   &Config{Server: ServerConfig{AppEnv: "development"}},
			expected: true,
		},
		{
			name:     "debug gin mode",
			config:   &Config{Server: ServerConfig{GinMode: "debug"}},
			expected: true,
		},
		{
			name:     "production environment",
			config:   &Config{Server: ServerConfig{AppEnv: "production"}},
			expected: false,
		},
		{
			name:     "release mode",
			config:   &Config{Server: ServerConfig{GinMode: "release", AppEnv: "production"}},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.IsDevelopment())
		})
	}
}

func TestConfig_TestFormEnabled(t *testing.T) {
	cfg := &Config{Server: ServerConfig{AppEnv: "production"}}
	assert.False(t, cfg.TestFormEnabled())

	cfg.Features.TestFormEnabled = true
	assert.True(t, cfg.TestFormEnabled())

	dev := &Config{Server: ServerConfig{AppEnv: "development"}}
	assert.True(t, dev.TestFormEnabled())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		errorMsg string
	}{
		{
			name:   "valid memory config",
			mutate: func(c *Config) {},
		},
		{
			name: "valid redis config",
			mutate: func(c *Config) {
				c.RateLimit.Store = RateLimitStoreRedis
				c.Redis.Addr = "localhost:6379"
			},
		},
		{
			name:     "missing port",
			mutate:   func(c *Config) { c.Server.Port = "" },
			errorMsg: "PORT is required",
		},
		{
			name:     "missing origins",
			mutate:   func(c *Config) { c.Server.AllowedOrigins = nil },
			errorMsg: "ALLOWED_CORS_ORIGINS is required",
		},
		{
			name:     "unknown store",
			mutate:   func(c *Config) { c.RateLimit.Store = "memcached" },
			errorMsg: "RATE_LIMIT_STORE must be",
		},
		{
			name:     "redis without address",
			mutate:   func(c *Config) { c.RateLimit.Store = RateLimitStoreRedis },
			errorMsg: "REDIS_ADDR is required",
		},
		{
			name:     "zero contact quota",
			mutate:   func(c *Config) { c.RateLimit.ContactMaxRequests = 0 },
			errorMsg: "contact rate limit",
		},
		{
			name:     "zero default window",
			mutate:   func(c *Config) { c.RateLimit.DefaultWindowSeconds = 0 },
			errorMsg: "default rate limit",
		},
		{
			name: "profiling without endpoint",
			mutate: func(c *Config) {
				c.Profiling.Enabled = true
			},
			errorMsg: "O11Y_PROFILING_ENDPOINT is required",
		},
		{
			name: "credentials are not startup requirements",
			mutate: func(c *Config) {
				c.Turnstile.SecretKey = ""
				c.HighLevel.PITToken = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHighLevelConfig_MissingSetting(t *testing.T) {
	assert.Equal(t, "GHL_PIT_TOKEN", HighLevelConfig{LocationID: "loc"}.MissingSetting())
	assert.Equal(t, "GHL_LOCATION_ID", HighLevelConfig{PITToken: "pit"}.MissingSetting())
	assert.Equal(t, "", HighLevelConfig{PITToken: "pit", LocationID: "loc"}.MissingSetting())
}

func TestLoad_WithDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, "production", cfg.Server.AppEnv)
	assert.Equal(t, RateLimitStoreMemory, cfg.RateLimit.Store)
	assert.Equal(t, 5, cfg.RateLimit.ContactMaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.ContactWindow())
	assert.Equal(t, 10, cfg.RateLimit.DefaultMaxRequests)
	assert.Equal(t, time.Minute, cfg.RateLimit.SweepInterval())
	assert.Equal(t, "Too many requests. Please try again later.", cfg.RateLimit.ErrorMessage)
	assert.Equal(t, "https://challenges.cloudflare.com/turnstile/v0/siteverify", cfg.Turnstile.VerifyURL)
	assert.Equal(t, "https://services.leadconnectorhq.com", cfg.HighLevel.BaseURL)
	assert.Equal(t, "2021-07-28", cfg.HighLevel.APIVersion)
	assert.False(t, cfg.Database.Enabled())
	assert.Equal(t, []string{"https://brightpath.agency", "https://www.brightpath.agency"}, cfg.Server.AllowedOrigins)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Chdir(t.TempDir())
	os.Clearenv()

	t.Setenv("PORT", "9000")
	t.Setenv("APP_ENV", "development")
	t.Setenv("ALLOWED_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RATE_LIMIT_STORE", "Redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CONTACT_RATE_LIMIT_MAX_REQUESTS", "3")
	t.Setenv("TURNSTILE_SECRET_KEY", "turnstile-secret")
	t.Setenv("GHL_PIT_TOKEN", "pit-123")
	t.Setenv("GHL_LOCATION_ID", "loc-456")
	t.Setenv("GHL_BASE_URL", "https://crm.example/")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/brightpath")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, RateLimitStoreRedis, cfg.RateLimit.Store)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 3, cfg.RateLimit.ContactMaxRequests)
	assert.Equal(t, "turnstile-secret", cfg.Turnstile.SecretKey)
	assert.Equal(t, "pit-123", cfg.HighLevel.PITToken)
	assert.Equal(t, "loc-456", cfg.HighLevel.LocationID)
	assert.Equal(t, "https://crm.example", cfg.HighLevel.BaseURL)
	assert.True(t, cfg.Database.Enabled())
}

func TestLoad_ValidationFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	os.Clearenv()
	t.Setenv("RATE_LIMIT_STORE", "redis")

	cfg, err := Load()

	assert.Error(t, err)
	assert.Nil(t, cfg)
}
