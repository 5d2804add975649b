package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock starts at the real current time so go-cache's own expiry, which
// always reads the wall clock, agrees with the limiter's view.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func contactPolicy() Policy {
	return Policy{Name: "contact", MaxRequests: 5, Window: time.Minute, ErrorMessage: "slow down"}
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := newFakeClock()
	return NewLimiter(NewMemoryStore(time.Minute), WithClock(clock.Now)), clock
}

func TestLimiter_AdmitsUpToMaxRequests(t *testing.T) {
	limiter, _ := newTestLimiter()
	policy := contactPolicy()

	for i := 1; i <= policy.MaxRequests; i++ {
		d, err := limiter.Check(context.Background(), "203.0.113.7", policy)
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d should be admitted", i)
		assert.Equal(t, policy.MaxRequests-i, d.Remaining)
		assert.Equal(t, policy.MaxRequests, d.Limit)
		assert.Zero(t, d.RetryAfter)
	}
}

func TestLimiter_RejectsRequestOverQuota(t *testing.T) {
	limiter, clock := newTestLimiter()
	policy := contactPolicy()
	start := clock.Now()

	for i := 0; i < policy.MaxRequests; i++ {
		_, err := limiter.Check(context.Background(), "203.0.113.7", policy)
		require.NoError(t, err)
	}

	clock.Advance(10500 * time.Millisecond)
	d, err := limiter.Check(context.Background(), "203.0.113.7", policy)
	require.NoError(t, err)

	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50, d.RetryAfter) // ceil(49.5s)
	assert.Equal(t, start.Add(time.Minute), d.ResetTime)
}

func TestLimiter_RejectedRequestsStillCount(t *testing.T) {
	limiter, clock := newTestLimiter()
	policy := contactPolicy()
	ctx := context.Background()

	for i := 0; i < policy.MaxRequests+3; i++ {
		_, err := limiter.Check(ctx, "client", policy)
		require.NoError(t, err)
	}

	d, found, err := limiter.Quota(ctx, "client", policy)
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	// The window does not move while the client keeps retrying
	clock.Advance(59 * time.Second)
	d, err = limiter.Check(ctx, "client", policy)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 1, d.RetryAfter)
}

func TestLimiter_WindowResetsAfterExpiry(t *testing.T) {
	limiter, clock := newTestLimiter()
	policy := contactPolicy()
	ctx := context.Background()

	for i := 0; i < policy.MaxRequests+1; i++ {
		_, err := limiter.Check(ctx, "client", policy)
		require.NoError(t, err)
	}

	clock.Advance(policy.Window)

	d, err := limiter.Check(ctx, "client", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, policy.MaxRequests-1, d.Remaining, "fresh window starts with a count of 1")
	assert.Equal(t, clock.Now().Add(policy.Window), d.ResetTime)
}

func TestLimiter_BoundaryBurstIsAllowed(t *testing.T) {
	limiter, clock := newTestLimiter()
	policy := contactPolicy()
	ctx := context.Background()

	_, err := limiter.Check(ctx, "client", policy)
	require.NoError(t, err)

	clock.Advance(policy.Window - time.Second)
	for i := 0; i < policy.MaxRequests-1; i++ {
		d, err := limiter.Check(ctx, "client", policy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	clock.Advance(time.Second)
	for i := 0; i < policy.MaxRequests; i++ {
		d, err := limiter.Check(ctx, "client", policy)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
}

func TestLimiter_DistinctKeysDoNotShareQuota(t *testing.T) {
	limiter, _ := newTestLimiter()
	policy := contactPolicy()
	ctx := context.Background()

	for i := 0; i < policy.MaxRequests+2; i++ {
		_, err := limiter.Check(ctx, "198.51.100.1", policy)
		require.NoError(t, err)
	}

	d, err := limiter.Check(ctx, "198.51.100.2", policy)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, policy.MaxRequests-1, d.Remaining)
}

func TestLimiter_ConcurrentChecksAdmitExactlyMax(t *testing.T) {
	limiter, _ := newTestLimiter()
	policy := Policy{Name: "burst", MaxRequests: 25, Window: time.Minute}

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := limiter.Check(context.Background(), "shared", policy)
			if err == nil && d.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(policy.MaxRequests), admitted.Load())
}

type failingStore struct{}

func (failingStore) Hit(context.Context, string, time.Duration, time.Time) (Entry, error) {
	return Entry{}, errors.New("connection refused")
}

func (failingStore) Peek(context.Context, string, time.Time) (Entry, bool, error) {
	return Entry{}, false, errors.New("connection refused")
}

func TestLimiter_StoreFailureFailsOpen(t *testing.T) {
	limiter := NewLimiter(failingStore{})
	policy := contactPolicy()

	d, err := limiter.Check(context.Background(), "client", policy)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.True(t, d.Allowed)
	assert.Equal(t, policy.MaxRequests, d.Remaining)

	_, found, err := limiter.Quota(context.Background(), "client", policy)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestLimiter_QuotaWithoutEntry(t *testing.T) {
	limiter, _ := newTestLimiter()

	_, found, err := limiter.Quota(context.Background(), "nobody", contactPolicy())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPolicy_Validate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())
	assert.Error(t, Policy{Name: "x", MaxRequests: 0, Window: time.Second}.Validate())
	assert.Error(t, Policy{Name: "x", MaxRequests: 1}.Validate())
	assert.Equal(t, DefaultErrorMessage, Policy{}.Message())
	assert.Equal(t, "slow down", contactPolicy().Message())
}

func TestDecision_WriteHeaders(t *testing.T) {
	reset := time.Date(2026, 10, 16, 12, 30, 0, 0, time.UTC)

	admitted := http.Header{}
	Decision{Allowed: true, Limit: 5, Remaining: 3, ResetTime: reset}.WriteHeaders(admitted)
	assert.Equal(t, "5", admitted.Get(HeaderLimit))
	assert.Equal(t, "3", admitted.Get(HeaderRemaining))
	assert.Equal(t, "2026-10-16T12:30:00.000Z", admitted.Get(HeaderReset))
	assert.Empty(t, admitted.Get(HeaderRetryAfter))

	rejected := http.Header{}
	Decision{Allowed: false, Limit: 5, Remaining: 0, ResetTime: reset, RetryAfter: 42}.WriteHeaders(rejected)
	assert.Equal(t, "0", rejected.Get(HeaderRemaining))
	assert.Equal(t, "42", rejected.Get(HeaderRetryAfter))
}
