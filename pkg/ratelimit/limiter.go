// Package ratelimit implements a fixed-window request counter keyed by client.
//
// A window opens on the first request from a client and lasts Policy.Window.
// Every request inside the window increments the count, including rejected
// ones, so a client that keeps hammering stays blocked until the window
// closes. Because windows are anchored per client rather than sliding, a
// burst straddling the window edge can admit up to twice the nominal rate.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/brightpath/brightpath-api/pkg/metrics"
)

// DefaultErrorMessage is returned to clients that exceed their quota
const DefaultErrorMessage = "Too many requests. Please try again later."

// Policy is the quota applied at one call site
type Policy struct {
	Name         string
	MaxRequests  int
	Window       time.Duration
	ErrorMessage string
}

// DefaultPolicy returns the quota used by endpoints without a stricter policy
func DefaultPolicy() Policy {
	return Policy{
		Name:         "default",
		MaxRequests:  10,
		Window:       time.Minute,
		ErrorMessage: DefaultErrorMessage,
	}
}

// Validate reports a policy that cannot admit any request
func (p Policy) Validate() error {
	if p.MaxRequests <= 0 {
		return fmt.Errorf("rate limit policy %q: max requests must be positive", p.Name)
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %q: window must be positive", p.Name)
	}
	return nil
}

// Message returns the client-facing rejection message
func (p Policy) Message() string {
	if p.ErrorMessage == "" {
		return DefaultErrorMessage
	}
	return p.ErrorMessage
}

func (p Policy) label() string {
	if p.Name == "" {
		return "unnamed"
	}
	return p.Name
}

// Decision is the outcome of a single Check
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
	// RetryAfter is the number of whole seconds until the window resets; set only on rejection
	RetryAfter int
}

// Limiter applies policies against a shared Store
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// NewLimiter creates a limiter backed by store
func NewLimiter(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request for key and decides whether it is admitted.
//
// When the store fails the request is admitted and the error is returned so
// the caller can log it; a broken store must not take lead capture down.
func (l *Limiter) Check(ctx context.Context, key string, policy Policy) (Decision, error) {
	now := l.now()

	entry, err := l.store.Hit(ctx, key, policy.Window, now)
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(policy.label(), "error").Inc()
		return Decision{
			Allowed:   true,
			Limit:     policy.MaxRequests,
			Remaining: policy.MaxRequests,
			ResetTime: now.Add(policy.Window),
		}, fmt.Errorf("rate limit store hit: %w", err)
	}

	if entry.Count > policy.MaxRequests {
		metrics.RateLimitDecisions.WithLabelValues(policy.label(), "rejected").Inc()
		return Decision{
			Allowed:    false,
			Limit:      policy.MaxRequests,
			Remaining:  0,
			ResetTime:  entry.ResetTime,
			RetryAfter: retryAfterSeconds(entry.ResetTime.Sub(now)),
		}, nil
	}

	metrics.RateLimitDecisions.WithLabelValues(policy.label(), "allowed").Inc()
	return Decision{
		Allowed:   true,
		Limit:     policy.MaxRequests,
		Remaining: remaining(policy.MaxRequests, entry.Count),
		ResetTime: entry.ResetTime,
	}, nil
}

// Quota reads the current state for key without counting a request.
// found is false when the client has no live window.
func (l *Limiter) Quota(ctx context.Context, key string, policy Policy) (decision Decision, found bool, err error) {
	now := l.now()

	entry, ok, err := l.store.Peek(ctx, key, now)
	if err != nil {
		return Decision{}, false, fmt.Errorf("rate limit store peek: %w", err)
	}
	if !ok {
		return Decision{}, false, nil
	}

	return Decision{
		Allowed:   entry.Count <= policy.MaxRequests,
		Limit:     policy.MaxRequests,
		Remaining: remaining(policy.MaxRequests, entry.Count),
		ResetTime: entry.ResetTime,
	}, true, nil
}

func remaining(maxRequests, count int) int {
	if count >= maxRequests {
		return 0
	}
	return maxRequests - count
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
