package ratelimit

import (
	"context"
	"time"
)

// Entry is the per-client window state
type Entry struct {
	Count     int
	ResetTime time.Time
}

// Expired reports whether the window has closed at now
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ResetTime)
}

// Store holds one Entry per client key.
//
// Hit must be atomic per key: it either opens a fresh window
// ({Count: 1, ResetTime: now+window}) when no live entry exists, or
// increments the live entry, and returns the entry after the update.
type Store interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (Entry, error)
	Peek(ctx context.Context, key string, now time.Time) (Entry, bool, error)
}
