package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	authrouter "github.com/sigauth/sigauth/engine/auth/router"
	"github.com/sigauth/sigauth/engine/infra/server/middleware/size"
	"github.com/sigauth/sigauth/pkg/logger"
)

// maxRequestBodyBytes bounds every request body; the largest legitimate one
// carries a 44 character base64 key.
const maxRequestBodyBytes int64 = 64 << 10

func (s *Server) buildRouter() error {
	r := gin.New()
	if err := r.SetTrustedProxies(s.cfg.Server.TrustedProxies); err != nil {
		return fmt.Errorf("invalid trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.Use(s.monitoring.GinMiddleware())
	}
	r.Use(LoggerMiddleware(logger.FromContext(s.ctx)))
	if s.cfg.Server.CORSEnabled {
		r.Use(CORSMiddleware(s.cfg.Server.CORS))
	}
	r.Use(size.BodySizeLimiter(maxRequestBodyBytes))
	r.GET("/health", CreateHealthHandler(s))
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		r.GET(s.cfg.Monitoring.Path, gin.WrapH(s.monitoring.ExporterHandler()))
	}
	authrouter.RegisterRoutes(r, s.factory, s.rateLimit.ChallengeMiddleware())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, authrouter.ErrorResponse{Error: "not_found", Details: "route not found"})
	})
	s.router = r
	return nil
}
