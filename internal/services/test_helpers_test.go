package services_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brightpath/brightpath-api/config"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/ratelimit"
)

func init() {
	// Initialize logger for tests
	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{AppEnv: "test"},
		RateLimit: config.RateLimitConfig{
			Store:                config.RateLimitStoreMemory,
			ContactMaxRequests:   5,
			ContactWindowSeconds: 60,
			DefaultMaxRequests:   10,
			DefaultWindowSeconds: 60,
			SweepIntervalSeconds: 60,
			ErrorMessage:         ratelimit.DefaultErrorMessage,
		},
		HighLevel: config.HighLevelConfig{
			PITToken:   "pit-token",
			LocationID: "loc-1",
		},
	}
}

func newTestLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(ratelimit.NewMemoryStore(time.Minute))
}

// syncDispatcher runs tasks inline so tests can assert on their effects
type syncDispatcher struct {
	operations []string
	triggered  []string
	errs       []error
}

func (d *syncDispatcher) Dispatch(operation string, fn func(ctx context.Context) error) {
	d.operations = append(d.operations, operation)
	if err := fn(context.Background()); err != nil {
		d.errs = append(d.errs, err)
	}
}

func (d *syncDispatcher) CallURL(triggerURL, recordID string) {
	if triggerURL == "" {
		return
	}
	d.triggered = append(d.triggered, triggerURL+recordID)
}

func body(v any) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
