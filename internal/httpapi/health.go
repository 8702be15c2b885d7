package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthChecker is a single dependency the gateway can report on at
// GET /health, grounded on VidIsWandering-secure-payment-gateway's
// internal/core/ports.HealthChecker.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// health aggregates every configured HealthChecker into a single
// {"status": ..., "dependencies": {...}} response, grounded on
// VidIsWandering-secure-payment-gateway's
// internal/adapter/http/handler/auth_handler.go HealthCheck handler.
func (s *Server) health(c *gin.Context) {
	deps := gin.H{}
	healthy := true

	for _, checker := range s.HealthCheckers {
		if err := checker.Ping(c.Request.Context()); err != nil {
			healthy = false
			deps[checker.Name()] = gin.H{"status": "unhealthy", "error": err.Error()}
			continue
		}
		deps[checker.Name()] = gin.H{"status": "healthy"}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "dependencies": deps})
}
