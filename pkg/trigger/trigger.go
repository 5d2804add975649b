// Package trigger runs best-effort work after a response has been decided:
// attaching notes to CRM contacts and notifying downstream automation.
// Failures are logged and never reach the caller.
package trigger

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/brightpath/brightpath-api/pkg/httpclient"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"go.uber.org/zap"
)

// DefaultTaskTimeout bounds every background task
const DefaultTaskTimeout = 15 * time.Second

// Dispatcher runs tasks on their own goroutines, detached from the request
// context, and tracks them so shutdown can wait for stragglers.
type Dispatcher struct {
	httpClient httpclient.Client
	timeout    time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A non-positive timeout uses DefaultTaskTimeout.
func NewDispatcher(httpClient httpclient.Client, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &Dispatcher{
		httpClient: httpClient,
		timeout:    timeout,
	}
}

// Dispatch runs fn in the background. Tasks submitted after Wait has been
// called are dropped.
func (d *Dispatcher) Dispatch(operation string, fn func(ctx context.Context) error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		metrics.BackgroundTasks.WithLabelValues(operation, "dropped").Inc()
		logger.Warn("Background task dropped during shutdown", zap.String("operation", operation))
		return
	}
	d.pending.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				metrics.BackgroundTasks.WithLabelValues(operation, "panic").Inc()
				logger.Error("Background task panicked",
					zap.String("operation", operation),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			metrics.BackgroundTasks.WithLabelValues(operation, "error").Inc()
			logger.Error("Background task failed",
				zap.String("operation", operation),
				zap.Error(err))
			return
		}
		metrics.BackgroundTasks.WithLabelValues(operation, "success").Inc()
	}()
}

// CallURL notifies triggerURL with recordID appended. An empty URL is a no-op.
func (d *Dispatcher) CallURL(triggerURL, recordID string) {
	if triggerURL == "" {
		return
	}

	d.Dispatch("trigger_url", func(ctx context.Context) error {
		targetURL := fmt.Sprintf("%s%s", triggerURL, recordID)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
		if err != nil {
			return fmt.Errorf("failed to build trigger request: %w", err)
		}

		resp, err := d.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to call trigger URL %s: %w", targetURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("trigger URL %s returned status %d", targetURL, resp.StatusCode)
		}

		logger.Info("Trigger URL called successfully",
			zap.String("url", targetURL),
			zap.String("record_id", recordID),
			zap.Int("status_code", resp.StatusCode))
		return nil
	})
}

// Wait stops accepting tasks and blocks until every running task finishes
// or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("background tasks still running: %w", ctx.Err())
	}
}
