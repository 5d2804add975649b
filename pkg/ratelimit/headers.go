package ratelimit

import (
	"net/http"
	"strconv"
	"time"
)

// Response header names
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// ResetLayout renders reset times as ISO-8601 UTC with milliseconds
const ResetLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatReset renders t the way X-RateLimit-Reset carries it
func FormatReset(t time.Time) string {
	return t.UTC().Format(ResetLayout)
}

// WriteHeaders sets the quota headers, plus Retry-After when rejected
func (d Decision) WriteHeaders(h http.Header) {
	h.Set(HeaderLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderReset, FormatReset(d.ResetTime))
	if !d.Allowed {
		h.Set(HeaderRetryAfter, strconv.Itoa(d.RetryAfter))
	}
}
