package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/pkg/logger"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	healthTimeout   = 2 * time.Second
)

// ComponentHealth reports one backing service.
type ComponentHealth struct {
	Driver  string `json:"driver"`
	Healthy bool   `json:"healthy"`
}

// HealthResponse is the /health body.
type HealthResponse struct {
	Status string           `json:"status"`
	Store  ComponentHealth  `json:"store"`
	Redis  *ComponentHealth `json:"redis,omitempty"`
}

// CreateHealthHandler godoc
// @Summary Get server health
// @Description Pings the store and, when configured, redis.
// @Produce json
// @Success 200 {object} HealthResponse "all components reachable"
// @Failure 503 {object} HealthResponse "a component is unreachable"
// @Router /health [get]
func CreateHealthHandler(s *Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		log := logger.FromContext(ctx)
		resp := HealthResponse{
			Status: statusHealthy,
			Store:  ComponentHealth{Driver: s.store.Driver(), Healthy: true},
		}
		if err := s.store.HealthCheck(ctx); err != nil {
			log.Warn("Store health check failed", "error", err)
			resp.Store.Healthy = false
			resp.Status = statusUnhealthy
		}
		if s.redis != nil {
			resp.Redis = &ComponentHealth{Driver: "redis", Healthy: true}
			if err := s.redis.HealthCheck(ctx); err != nil {
				log.Warn("Redis health check failed", "error", err)
				resp.Redis.Healthy = false
				resp.Status = statusUnhealthy
			}
		}
		code := http.StatusOK
		if resp.Status != statusHealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, resp)
	}
}
