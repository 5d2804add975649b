package handlers

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency; nil means healthy
type HealthCheck func(ctx context.Context) error

const healthCheckTimeout = 2 * time.Second

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		checks: checks,
	}
}

func (h *HealthHandler) Healthcheck(c *gin.Context) {
	c.Header("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")

	var failing []string
	for name, check := range h.checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := check(ctx)
		cancel()
		if err != nil {
			logger.Warn("Health check failed", zap.String("dependency", name), zap.Error(err))
			failing = append(failing, name)
		}
	}

	if len(failing) > 0 {
		slices.Sort(failing)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"failing": failing,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}
