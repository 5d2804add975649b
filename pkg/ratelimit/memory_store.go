package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const lockStripes = 64

// MemoryStore keeps entries in process memory.
//
// Each key's read-modify-write runs under one of a fixed set of striped
// mutexes, so checks for different clients rarely contend and the sweep,
// which only takes the cache's internal lock, never waits on a check.
type MemoryStore struct {
	entries    *gocache.Cache
	locks      [lockStripes]sync.Mutex
	sweepEvery time.Duration
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store swept every sweepEvery by Run
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	return &MemoryStore{
		// Expiry is set per item; the janitor is replaced by Run so it can be stopped
		entries:    gocache.New(gocache.NoExpiration, 0),
		sweepEvery: sweepEvery,
	}
}

func (s *MemoryStore) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.locks[h.Sum32()%lockStripes]
}

// Hit implements Store
func (s *MemoryStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (Entry, error) {
	mu := s.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	if cached, found := s.entries.Get(key); found {
		if entry, ok := cached.(Entry); ok && !entry.Expired(now) {
			entry.Count++
			s.entries.Set(key, entry, entry.ResetTime.Sub(now))
			return entry, nil
		}
	}

	entry := Entry{Count: 1, ResetTime: now.Add(window)}
	s.entries.Set(key, entry, window)
	return entry, nil
}

// Peek implements Store
func (s *MemoryStore) Peek(_ context.Context, key string, now time.Time) (Entry, bool, error) {
	cached, found := s.entries.Get(key)
	if !found {
		return Entry{}, false, nil
	}
	entry, ok := cached.(Entry)
	if !ok || entry.Expired(now) {
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Len returns the number of entries held, including expired ones not yet swept
func (s *MemoryStore) Len() int {
	return s.entries.ItemCount()
}

// Sweep removes expired entries and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	before := s.entries.ItemCount()
	s.entries.DeleteExpired()
	after := s.entries.ItemCount()

	removed := before - after
	if removed < 0 {
		removed = 0
	}

	metrics.RateLimitEntries.Set(float64(after))
	metrics.RateLimitSweeps.Add(float64(removed))
	return removed
}

// Run sweeps expired entries on a fixed interval until ctx is cancelled
func (s *MemoryStore) Run(ctx context.Context) {
	if s.sweepEvery <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				logger.Debug("Rate limit entries swept",
					zap.Int("removed", removed),
					zap.Int("remaining", s.Len()))
			}
		}
	}
}
