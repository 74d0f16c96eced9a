package start

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/cli/helpers"
	"github.com/sigauth/sigauth/engine/infra/server"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	productionEnvironment = "production"
	disableSSLMode        = "disable"
	localhost             = "localhost"
)

// NewStartCommand creates the start command
func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "start",
		Aliases: []string{"server"},
		Short:   "Start the authentication server",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)
			if cfg.Runtime.Environment == productionEnvironment {
				gin.SetMode(gin.ReleaseMode)
			}
			helpers.Banner(cmd.OutOrStdout())
			logSecurityWarnings(ctx, cfg)
			srv, err := server.NewServer(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create server: %w", err)
			}
			return srv.Run()
		},
	}
}

// logSecurityWarnings flags settings that are risky outside development.
func logSecurityWarnings(ctx context.Context, cfg *config.Config) {
	if cfg.Runtime.Environment != productionEnvironment {
		return
	}
	log := logger.FromContext(ctx)
	if cfg.Database.Driver == "postgres" && cfg.Database.SSLMode == disableSSLMode {
		log.Warn("Database SSL is disabled in production", "hint", "set database.ssl_mode=require")
	}
	if cfg.Server.CORSEnabled {
		for _, origin := range cfg.Server.CORS.AllowedOrigins {
			if strings.Contains(origin, localhost) {
				log.Warn("CORS allows localhost origins in production", "origin", origin)
				break
			}
		}
	}
	if cfg.RateLimit.ChallengeRate.Disabled {
		log.Warn("Challenge rate limiting is disabled in production")
	}
	if !cfg.Auth.EnumerationProtection {
		log.Warn("Username enumeration protection is disabled in production")
	}
}
