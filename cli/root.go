package cli

import (
	"context"
	"fmt"

	"github.com/sigauth/sigauth/cli/cmd/client"
	configcmd "github.com/sigauth/sigauth/cli/cmd/config"
	"github.com/sigauth/sigauth/cli/cmd/keygen"
	"github.com/sigauth/sigauth/cli/cmd/migrate"
	"github.com/sigauth/sigauth/cli/cmd/start"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	flagConfig  = "config"
	flagEnvFile = "env-file"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sigauth",
		Short:         "Public-key challenge/response authentication server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String(flagConfig, "", "Path to a YAML configuration file")
	flags.String(flagEnvFile, ".env", "Path to an environment file, relative to the working directory")
	addConfigFlags(flags)

	root.AddCommand(
		start.NewStartCommand(),
		migrate.NewMigrateCommand(),
		keygen.NewKeygenCommand(),
		client.NewClientCommand(),
		configcmd.NewConfigCommand(),
	)
	return root
}

// SetupGlobalConfig loads configuration from the env file, the YAML file,
// the environment and changed flags, then installs the logger and the config
// manager on the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	var sources []config.Source
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	cliFlags := make(map[string]any)
	extractCLIFlags(cmd, cliFlags)
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx, sources...)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	ctx = logger.ContextWithLogger(ctx, log)
	ctx = config.ContextWithManager(ctx, manager)
	cmd.SetContext(ctx)
	return nil
}
