package store

import (
	"fmt"
	"time"

	"github.com/sigauth/sigauth/engine/infra/postgres"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects a driver and carries its settings.
type Config struct {
	Driver         string
	SQLite         sqlite.Config
	Postgres       postgres.Config
	ConnectRetries uint64
	RetryBaseDelay time.Duration
	AutoMigrate    bool
}

func (c *Config) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if err := c.SQLite.Validate(); err != nil {
			return fmt.Errorf("store: %w", err)
		}
	case DriverPostgres:
		return c.Postgres.Validate()
	default:
		return fmt.Errorf("store: unsupported driver %q", c.Driver)
	}
	return nil
}
