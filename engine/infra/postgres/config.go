package postgres

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"time"
)

const (
	defaultMaxConns           = 20
	defaultHealthCheckPeriod  = 30 * time.Second
	defaultConnectTimeout     = 5 * time.Second
	defaultPingTimeout        = 3 * time.Second
	defaultHealthCheckTimeout = 1 * time.Second
	applicationName           = "sigauth"
)

// Config holds PostgreSQL connection settings for the driver.
// ConnString wins when set; otherwise a DSN is synthesized from the fields.
type Config struct {
	ConnString         string        `json:"conn_string"          yaml:"conn_string"          mapstructure:"conn_string"`
	Host               string        `json:"host"                 yaml:"host"                 mapstructure:"host"`
	Port               string        `json:"port"                 yaml:"port"                 mapstructure:"port"`
	User               string        `json:"user"                 yaml:"user"                 mapstructure:"user"`
	Password           string        `json:"-"                    yaml:"password"             mapstructure:"password"`
	DBName             string        `json:"db_name"              yaml:"db_name"              mapstructure:"db_name"`
	SSLMode            string        `json:"ssl_mode"             yaml:"ssl_mode"             mapstructure:"ssl_mode"`
	MaxOpenConns       int           `json:"max_open_conns"       yaml:"max_open_conns"       mapstructure:"max_open_conns"`
	MaxIdleConns       int           `json:"max_idle_conns"       yaml:"max_idle_conns"       mapstructure:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"    yaml:"conn_max_lifetime"    mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime    time.Duration `json:"conn_max_idle_time"   yaml:"conn_max_idle_time"   mapstructure:"conn_max_idle_time"`
	HealthCheckPeriod  time.Duration `json:"health_check_period"  yaml:"health_check_period"  mapstructure:"health_check_period"`
	ConnectTimeout     time.Duration `json:"connect_timeout"      yaml:"connect_timeout"      mapstructure:"connect_timeout"`
	PingTimeout        time.Duration `json:"ping_timeout"         yaml:"ping_timeout"         mapstructure:"ping_timeout"`
	HealthCheckTimeout time.Duration `json:"health_check_timeout" yaml:"health_check_timeout" mapstructure:"health_check_timeout"`
}

// dsn renders cfg as a postgres:// URL understood by both pgxpool and the
// pgx database/sql driver.
func dsn(cfg *Config) string {
	if cfg.ConnString != "" {
		return cfg.ConnString
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(host, port),
		Path:   "/" + cfg.DBName,
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return u.String()
}

// DSN exposes the rendered connection string for tooling such as migrations.
func (c *Config) DSN() string { return dsn(c) }

// Validate rejects configs that can never connect.
func (c *Config) Validate() error {
	if c.ConnString != "" {
		return nil
	}
	if c.DBName == "" {
		return fmt.Errorf("postgres: db_name is required when conn_string is empty")
	}
	if c.MaxOpenConns < 0 || c.MaxIdleConns < 0 {
		return fmt.Errorf("postgres: connection limits cannot be negative")
	}
	return nil
}

// resolved returns a copy with defaults filled in. MaxIdleConns is the number
// of connections the pool keeps warm and never exceeds MaxOpenConns.
func (c *Config) resolved() Config {
	out := *c
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = defaultMaxConns
	}
	if out.MaxOpenConns > math.MaxInt32 {
		out.MaxOpenConns = math.MaxInt32
	}
	if out.MaxIdleConns < 0 {
		out.MaxIdleConns = 0
	}
	if out.MaxIdleConns > out.MaxOpenConns {
		out.MaxIdleConns = out.MaxOpenConns
	}
	if out.HealthCheckPeriod <= 0 {
		out.HealthCheckPeriod = defaultHealthCheckPeriod
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = defaultConnectTimeout
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = defaultPingTimeout
	}
	if out.HealthCheckTimeout <= 0 {
		out.HealthCheckTimeout = defaultHealthCheckTimeout
	}
	return out
}
