package postgres

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	t.Run("Should prefer the explicit connection string", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://a@b/c", Host: "ignored"}
		assert.Equal(t, "postgres://a@b/c", dsn(cfg))
	})

	t.Run("Should synthesize a URL from fields", func(t *testing.T) {
		cfg := &Config{Host: "db", Port: "6543", User: "auth", Password: "p@ss word", DBName: "sigauth"}
		u, err := url.Parse(dsn(cfg))
		require.NoError(t, err)
		assert.Equal(t, "db:6543", u.Host)
		assert.Equal(t, "/sigauth", u.Path)
		assert.Equal(t, "auth", u.User.Username())
		pw, _ := u.User.Password()
		assert.Equal(t, "p@ss word", pw)
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
	})

	t.Run("Should default host and port", func(t *testing.T) {
		u, err := url.Parse(dsn(&Config{DBName: "x", SSLMode: "require"}))
		require.NoError(t, err)
		assert.Equal(t, "localhost:5432", u.Host)
		assert.Equal(t, "require", u.Query().Get("sslmode"))
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("Should require a database name without a connection string", func(t *testing.T) {
		assert.Error(t, (&Config{Host: "db"}).Validate())
		assert.NoError(t, (&Config{ConnString: "postgres://x"}).Validate())
		assert.NoError(t, (&Config{DBName: "sigauth"}).Validate())
	})

	t.Run("Should reject negative pool limits", func(t *testing.T) {
		assert.Error(t, (&Config{DBName: "x", MaxOpenConns: -1}).Validate())
	})
}

func TestConfig_Resolved(t *testing.T) {
	t.Run("Should fill in pool defaults", func(t *testing.T) {
		got := (&Config{DBName: "sigauth"}).resolved()
		assert.Equal(t, defaultMaxConns, got.MaxOpenConns)
		assert.Zero(t, got.MaxIdleConns)
		assert.Equal(t, defaultHealthCheckPeriod, got.HealthCheckPeriod)
		assert.Equal(t, defaultConnectTimeout, got.ConnectTimeout)
		assert.Equal(t, defaultPingTimeout, got.PingTimeout)
		assert.Equal(t, defaultHealthCheckTimeout, got.HealthCheckTimeout)
	})

	t.Run("Should keep warm connections within the pool size", func(t *testing.T) {
		got := (&Config{DBName: "sigauth", MaxOpenConns: 8, MaxIdleConns: 12}).resolved()
		assert.Equal(t, 8, got.MaxOpenConns)
		assert.Equal(t, 8, got.MaxIdleConns)
	})

	t.Run("Should cap the pool at the pgx limit", func(t *testing.T) {
		got := (&Config{DBName: "sigauth", MaxOpenConns: math.MaxInt32 + 10}).resolved()
		assert.Equal(t, math.MaxInt32, got.MaxOpenConns)
	})

	t.Run("Should not touch the caller's config", func(t *testing.T) {
		cfg := &Config{DBName: "sigauth"}
		_ = cfg.resolved()
		assert.Zero(t, cfg.MaxOpenConns)
		assert.Zero(t, cfg.PingTimeout)
	})
}

func TestPoolConfig(t *testing.T) {
	t.Run("Should map resolved settings onto the pool", func(t *testing.T) {
		settings := (&Config{
			DBName:          "sigauth",
			MaxOpenConns:    8,
			MaxIdleConns:    3,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  2 * time.Second,
		}).resolved()
		poolCfg, err := poolConfig(&settings)
		require.NoError(t, err)
		assert.Equal(t, int32(8), poolCfg.MaxConns)
		assert.Equal(t, int32(3), poolCfg.MinConns)
		assert.Equal(t, time.Hour, poolCfg.MaxConnLifetime)
		assert.Equal(t, 2*time.Second, poolCfg.ConnConfig.ConnectTimeout)
		assert.Equal(t, defaultHealthCheckPeriod, poolCfg.HealthCheckPeriod)
	})

	t.Run("Should tag connections with the service name", func(t *testing.T) {
		settings := (&Config{DBName: "sigauth"}).resolved()
		poolCfg, err := poolConfig(&settings)
		require.NoError(t, err)
		assert.Equal(t, "sigauth", poolCfg.ConnConfig.RuntimeParams["application_name"])
	})

	t.Run("Should keep an application name from the connection string", func(t *testing.T) {
		settings := (&Config{ConnString: "postgres://auth@db/sigauth?application_name=edge-auth"}).resolved()
		poolCfg, err := poolConfig(&settings)
		require.NoError(t, err)
		assert.Equal(t, "edge-auth", poolCfg.ConnConfig.RuntimeParams["application_name"])
	})

	t.Run("Should reject malformed connection strings", func(t *testing.T) {
		settings := (&Config{ConnString: "postgres://%zz"}).resolved()
		_, err := poolConfig(&settings)
		assert.ErrorContains(t, err, "parse config")
	})
}

func TestNewStore(t *testing.T) {
	t.Run("Should require a config", func(t *testing.T) {
		_, err := NewStore(t.Context(), nil)
		assert.ErrorIs(t, err, ErrConfigRequired)
	})

	t.Run("Should validate before dialing", func(t *testing.T) {
		_, err := NewStore(t.Context(), &Config{Host: "db"})
		assert.ErrorContains(t, err, "db_name is required")
	})
}

func TestComputePoolLabel(t *testing.T) {
	t.Run("Should build the label from fields", func(t *testing.T) {
		assert.Equal(t, "db.internal-5432-sigauth", computePoolLabel(&Config{Host: "DB.internal", Port: "5432", DBName: "sigauth"}))
	})

	t.Run("Should never leak credentials from a connection string", func(t *testing.T) {
		label := computePoolLabel(&Config{ConnString: "postgres://user:secret@pg:5433/auth?sslmode=disable"})
		assert.Equal(t, "pg-5433-auth", label)
		assert.NotContains(t, label, "secret")
	})

	t.Run("Should use default label when empty", func(t *testing.T) {
		assert.Equal(t, defaultPoolLabel, computePoolLabel(nil))
		assert.Equal(t, defaultPoolLabel, computePoolLabel(&Config{}))
	})
}
