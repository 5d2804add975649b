package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), "ping", func() error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	cause := errors.New("connection refused")
	attempts := 0
	err := Do(context.Background(), fastConfig(), "ping", func() error {
		attempts++
		return cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 4, attempts)
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = func(error) bool { return false }
	attempts := 0

	err := Do(context.Background(), cfg, "ping", func() error {
		attempts++
		return errors.New("bad credentials")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoWithResult_RespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DoWithResult(ctx, fastConfig(), "ping", func() (int, error) { return 1, nil })

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := StartupConfig()
	cfg.Jitter = false

	assert.Equal(t, 500*time.Millisecond, calculateDelay(0, cfg))
	assert.Equal(t, time.Second, calculateDelay(1, cfg))
	assert.Equal(t, 8*time.Second, calculateDelay(10, cfg))
}
