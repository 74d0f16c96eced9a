package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/sigauth/sigauth/cli/helpers"
	"github.com/sigauth/sigauth/engine/infra/server"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/engine/infra/store"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/spf13/cobra"
)

const lockRetryDelay = 100 * time.Millisecond

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations for the configured driver and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			timeout, err := cmd.Flags().GetDuration("lock-timeout")
			if err != nil {
				return fmt.Errorf("failed to get lock-timeout flag: %w", err)
			}
			ctx := cmd.Context()
			if err := Run(ctx, config.FromContext(ctx), timeout); err != nil {
				return err
			}
			helpers.Success(cmd.OutOrStdout(), "Migrations applied")
			return nil
		},
	}
	cmd.Flags().Duration("lock-timeout", 30*time.Second, "How long to wait for another migrate run on the same SQLite file")
	return cmd
}

// Run opens the store without auto-migration and applies migrations once.
// SQLite runs are serialized with a lock file next to the database; Postgres
// relies on the advisory lock taken by the migrator.
func Run(ctx context.Context, cfg *config.Config, lockTimeout time.Duration) error {
	log := logger.FromContext(ctx)
	storeCfg := server.StoreConfig(cfg)
	storeCfg.AutoMigrate = false
	if storeCfg.Driver == store.DriverSQLite {
		unlock, err := lockSQLite(ctx, &storeCfg.SQLite, lockTimeout)
		if err != nil {
			return err
		}
		defer unlock()
	}
	st, err := store.Open(ctx, storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(ctx); err != nil {
			log.Warn("Failed to close store", "error", err)
		}
	}()
	return st.Migrate(ctx)
}

func lockSQLite(ctx context.Context, cfg *sqlite.Config, timeout time.Duration) (func(), error) {
	lockPath := cfg.LockPath()
	if lockPath == "" {
		return func() {}, nil
	}
	if dir := filepath.Dir(lockPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}
	fileLock := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	locked, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", fileLock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("another migration holds %s", fileLock.Path())
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			logger.FromContext(ctx).Warn("Failed to release migration lock", "path", fileLock.Path(), "error", err)
		}
	}, nil
}
