package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// UnknownClientKey is used when no proxy header names the client
const UnknownClientKey = "unknown"

const clientKeyContextKey = "client_key"

// Proxy headers consulted for the client address, in priority order
var clientKeyHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// ClientKey identifies the caller for rate limiting: the first present proxy
// header wins, and only the first X-Forwarded-For hop is used. Clients behind
// one NAT share a key.
func ClientKey(c *gin.Context) string {
	if key := c.GetString(clientKeyContextKey); key != "" {
		return key
	}

	key := UnknownClientKey
	for _, header := range clientKeyHeaders {
		value := c.GetHeader(header)
		if header == "X-Forwarded-For" {
			value, _, _ = strings.Cut(value, ",")
		}
		if value = strings.TrimSpace(value); value != "" {
			key = value
			break
		}
	}

	c.Set(clientKeyContextKey, key)
	return key
}
