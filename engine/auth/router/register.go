package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/engine/auth/uc"
	authmw "github.com/sigauth/sigauth/engine/infra/server/middleware/auth"
)

// RegisterRoutes registers all auth routes. challengeLimit guards
// /auth/request and may be nil.
func RegisterRoutes(r gin.IRouter, factory *uc.Factory, challengeLimit gin.HandlerFunc) {
	handler := NewHandler(factory)
	requireBearer := authmw.NewManager(factory.Issuer()).RequireBearer()

	r.GET("/", handler.Root)
	r.POST("/register-user", handler.RegisterUser)
	r.POST("/register-key", handler.RegisterKey)
	r.GET("/secure", requireBearer, handler.Secure)

	auth := r.Group("/auth")
	{
		request := []gin.HandlerFunc{handler.RequestChallenge}
		if challengeLimit != nil {
			request = append([]gin.HandlerFunc{challengeLimit}, request...)
		}
		auth.POST("/request", request...)
		auth.POST("/verify", handler.Verify)
		auth.POST("/refresh", handler.Refresh)
		auth.POST("/revoke-refresh", handler.RevokeRefresh)
	}

	// These endpoints require a bearer token
	protected := r.Group("/auth", requireBearer)
	{
		protected.POST("/logout", handler.Logout)
		protected.POST("/add-key", handler.AddKey)
		protected.POST("/revoke-key", handler.RevokeKey)
		protected.GET("/keys", handler.ListKeys)
	}
}
