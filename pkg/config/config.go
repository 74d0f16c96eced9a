package config

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sigauth/sigauth/pkg/config/definition"
)

// Config represents the complete configuration for the sigauth server.
// It provides type-safe access to all configuration values with validation.
type Config struct {
	Server     ServerConfig     `koanf:"server"     validate:"required"`
	Auth       AuthConfig       `koanf:"auth"       validate:"required"`
	Database   DatabaseConfig   `koanf:"database"   validate:"required"`
	RateLimit  RateLimitConfig  `koanf:"ratelimit"`
	Redis      RedisConfig      `koanf:"redis"`
	Monitoring MonitoringConfig `koanf:"monitoring"`
	Runtime    RuntimeConfig    `koanf:"runtime"    validate:"required"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"             validate:"required"        env:"SERVER_HOST"`
	Port            int           `koanf:"port"             validate:"min=1,max=65535" env:"SERVER_PORT"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"min=0"           env:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"min=0"           env:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"min=0"           env:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"           env:"SERVER_SHUTDOWN_TIMEOUT"`
	TrustedProxies  []string      `koanf:"trusted_proxies"  validate:"dive,cidr"       env:"SERVER_TRUSTED_PROXIES"`
	CORSEnabled     bool          `koanf:"cors_enabled"                                env:"SERVER_CORS_ENABLED"`
	CORS            CORSConfig    `koanf:"cors"`
}

// CORSConfig contains CORS configuration.
type CORSConfig struct {
	AllowedOrigins   []string `koanf:"allowed_origins"   env:"SERVER_CORS_ALLOWED_ORIGINS"`
	AllowCredentials bool     `koanf:"allow_credentials" env:"SERVER_CORS_ALLOW_CREDENTIALS"`
	MaxAge           int      `koanf:"max_age"           env:"SERVER_CORS_MAX_AGE"`
}

// AuthConfig holds the token and challenge policy.
//
// BearerSecret may be empty at load time so that commands which never sign
// tokens (migrate, keygen) still run. The server refuses to start without one.
type AuthConfig struct {
	BearerSecret          SensitiveString `koanf:"bearer_secret"          validate:"omitempty,minbytes=32" env:"AUTH_BEARER_SECRET" sensitive:"true"`
	BearerTTL             time.Duration   `koanf:"bearer_ttl"             validate:"gt=0"                  env:"AUTH_BEARER_TTL"`
	ChallengeTTL          time.Duration   `koanf:"challenge_ttl"          validate:"gt=0"                  env:"AUTH_CHALLENGE_TTL"`
	RefreshTTL            time.Duration   `koanf:"refresh_ttl"            validate:"gt=0"                  env:"AUTH_REFRESH_TTL"`
	MaxUsernameBytes      int             `koanf:"max_username_bytes"     validate:"min=1"                 env:"AUTH_MAX_USERNAME_BYTES"`
	MaxKeysPerUser        int             `koanf:"max_keys_per_user"      validate:"min=0"                 env:"AUTH_MAX_KEYS_PER_USER"`
	EnumerationProtection bool            `koanf:"enumeration_protection"                                  env:"AUTH_ENUMERATION_PROTECTION"`
	UserCacheTTL          time.Duration   `koanf:"user_cache_ttl"         validate:"min=0"                 env:"AUTH_USER_CACHE_TTL"`
	UserCacheSize         int             `koanf:"user_cache_size"        validate:"min=0"                 env:"AUTH_USER_CACHE_SIZE"`
}

// DatabaseConfig contains database connection configuration.
type DatabaseConfig struct {
	Driver          string          `koanf:"driver"             validate:"oneof=sqlite postgres" env:"DB_DRIVER"`
	Path            string          `koanf:"path"                                                env:"DB_PATH"`
	ConnString      string          `koanf:"conn_string"                                         env:"DB_CONN_STRING"     sensitive:"true"`
	Host            string          `koanf:"host"                                                env:"DB_HOST"`
	Port            string          `koanf:"port"                                                env:"DB_PORT"`
	User            string          `koanf:"user"                                                env:"DB_USER"`
	Password        SensitiveString `koanf:"password"                                            env:"DB_PASSWORD"        sensitive:"true"`
	DBName          string          `koanf:"name"                                                env:"DB_NAME"`
	SSLMode         string          `koanf:"ssl_mode"                                            env:"DB_SSL_MODE"`
	MaxOpenConns    int             `koanf:"max_open_conns"     validate:"min=0"                 env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns    int             `koanf:"max_idle_conns"     validate:"min=0"                 env:"DB_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration   `koanf:"conn_max_lifetime"  validate:"min=0"                 env:"DB_CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration   `koanf:"conn_max_idle_time" validate:"min=0"                 env:"DB_CONN_MAX_IDLE_TIME"`
	ConnectRetries  int             `koanf:"connect_retries"    validate:"min=0"                 env:"DB_CONNECT_RETRIES"`
	RetryBaseDelay  time.Duration   `koanf:"retry_base_delay"   validate:"min=0"                 env:"DB_RETRY_BASE_DELAY"`
	AutoMigrate     bool            `koanf:"auto_migrate"                                        env:"DB_AUTO_MIGRATE"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	ChallengeRate RateConfig `koanf:"challenge_rate"`
	Prefix        string     `koanf:"prefix"         env:"RATELIMIT_PREFIX"`
	MaxRetry      int        `koanf:"max_retry"      env:"RATELIMIT_MAX_RETRY"    validate:"min=0"`
	ExcludedIPs   []string   `koanf:"excluded_ips"   env:"RATELIMIT_EXCLUDED_IPS" validate:"dive,ip"`
}

// RateConfig represents a single rate limit configuration.
type RateConfig struct {
	Limit    int64         `koanf:"limit"    env:"RATELIMIT_CHALLENGE_LIMIT"`
	Period   time.Duration `koanf:"period"   env:"RATELIMIT_CHALLENGE_PERIOD"`
	Disabled bool          `koanf:"disabled" env:"RATELIMIT_CHALLENGE_DISABLED"`
}

// RedisConfig configures the optional shared store for rate limits and the user cache.
type RedisConfig struct {
	URL      string          `koanf:"url"       env:"REDIS_URL"       sensitive:"true"`
	Host     string          `koanf:"host"      env:"REDIS_HOST"`
	Port     string          `koanf:"port"      env:"REDIS_PORT"`
	Password SensitiveString `koanf:"password"  env:"REDIS_PASSWORD"  sensitive:"true"`
	DB       int             `koanf:"db"        env:"REDIS_DB"        validate:"min=0"`
	PoolSize int             `koanf:"pool_size" env:"REDIS_POOL_SIZE" validate:"min=0"`
}

// Enabled reports whether a redis endpoint was configured.
func (r *RedisConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"    validate:"required,startswith=/"`
}

// RuntimeConfig contains runtime behavior configuration.
type RuntimeConfig struct {
	Environment         string `koanf:"environment"           validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel            string `koanf:"log_level"             validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
	LogJSON             bool   `koanf:"log_json"                                                              env:"RUNTIME_LOG_JSON"`
	LogSource           bool   `koanf:"log_source"                                                            env:"RUNTIME_LOG_SOURCE"`
	ChallengeGCSchedule string `koanf:"challenge_gc_schedule" validate:"required"                             env:"RUNTIME_CHALLENGE_GC_SCHEDULE"`
}

// SensitiveString holds a secret that must never reach logs or JSON output.
type SensitiveString string

const redacted = "[REDACTED]"

// String implements fmt.Stringer and redacts non-empty values.
func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redacted
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

// MarshalJSON redacts the value.
func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON reads the raw value.
func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}

// Service defines the configuration loading service.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type for a specific configuration key.
	// This tracks which source (env, CLI, YAML, default) provided each value.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	// Load reads configuration from the source.
	Load() (map[string]any, error)
	// Type returns the source type identifier.
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads configuration from defaults and the environment.
func Load() (*Config, error) {
	service := NewService()
	return service.Load(context.Background())
}

// Default returns a Config populated from the field registry.
func Default() *Config {
	registry := definition.CreateRegistry()
	return &Config{
		Server:     buildServerConfig(registry),
		Auth:       buildAuthConfig(registry),
		Database:   buildDatabaseConfig(registry),
		RateLimit:  buildRateLimitConfig(registry),
		Redis:      buildRedisConfig(registry),
		Monitoring: buildMonitoringConfig(registry),
		Runtime:    buildRuntimeConfig(registry),
	}
}

// Helper functions for type-safe registry access
func getString(registry *definition.Registry, path string) string {
	if s, ok := registry.GetDefault(path).(string); ok {
		return s
	}
	return ""
}

func getInt(registry *definition.Registry, path string) int {
	if i, ok := registry.GetDefault(path).(int); ok {
		return i
	}
	return 0
}

func getInt64(registry *definition.Registry, path string) int64 {
	if i, ok := registry.GetDefault(path).(int64); ok {
		return i
	}
	return 0
}

func getBool(registry *definition.Registry, path string) bool {
	if b, ok := registry.GetDefault(path).(bool); ok {
		return b
	}
	return false
}

func getDuration(registry *definition.Registry, path string) time.Duration {
	if d, ok := registry.GetDefault(path).(time.Duration); ok {
		return d
	}
	return 0
}

func getStringSlice(registry *definition.Registry, path string) []string {
	if slice, ok := registry.GetDefault(path).([]string); ok {
		return append([]string{}, slice...)
	}
	return []string{}
}

func buildServerConfig(registry *definition.Registry) ServerConfig {
	return ServerConfig{
		Host:            getString(registry, "server.host"),
		Port:            getInt(registry, "server.port"),
		ReadTimeout:     getDuration(registry, "server.read_timeout"),
		WriteTimeout:    getDuration(registry, "server.write_timeout"),
		IdleTimeout:     getDuration(registry, "server.idle_timeout"),
		ShutdownTimeout: getDuration(registry, "server.shutdown_timeout"),
		TrustedProxies:  getStringSlice(registry, "server.trusted_proxies"),
		CORSEnabled:     getBool(registry, "server.cors_enabled"),
		CORS: CORSConfig{
			AllowedOrigins:   getStringSlice(registry, "server.cors.allowed_origins"),
			AllowCredentials: getBool(registry, "server.cors.allow_credentials"),
			MaxAge:           getInt(registry, "server.cors.max_age"),
		},
	}
}

func buildAuthConfig(registry *definition.Registry) AuthConfig {
	return AuthConfig{
		BearerSecret:          SensitiveString(getString(registry, "auth.bearer_secret")),
		BearerTTL:             getDuration(registry, "auth.bearer_ttl"),
		ChallengeTTL:          getDuration(registry, "auth.challenge_ttl"),
		RefreshTTL:            getDuration(registry, "auth.refresh_ttl"),
		MaxUsernameBytes:      getInt(registry, "auth.max_username_bytes"),
		MaxKeysPerUser:        getInt(registry, "auth.max_keys_per_user"),
		EnumerationProtection: getBool(registry, "auth.enumeration_protection"),
		UserCacheTTL:          getDuration(registry, "auth.user_cache_ttl"),
		UserCacheSize:         getInt(registry, "auth.user_cache_size"),
	}
}

func buildDatabaseConfig(registry *definition.Registry) DatabaseConfig {
	return DatabaseConfig{
		Driver:          getString(registry, "database.driver"),
		Path:            getString(registry, "database.path"),
		ConnString:      getString(registry, "database.conn_string"),
		Host:            getString(registry, "database.host"),
		Port:            getString(registry, "database.port"),
		User:            getString(registry, "database.user"),
		Password:        SensitiveString(getString(registry, "database.password")),
		DBName:          getString(registry, "database.name"),
		SSLMode:         getString(registry, "database.ssl_mode"),
		MaxOpenConns:    getInt(registry, "database.max_open_conns"),
		MaxIdleConns:    getInt(registry, "database.max_idle_conns"),
		ConnMaxLifetime: getDuration(registry, "database.conn_max_lifetime"),
		ConnMaxIdleTime: getDuration(registry, "database.conn_max_idle_time"),
		ConnectRetries:  getInt(registry, "database.connect_retries"),
		RetryBaseDelay:  getDuration(registry, "database.retry_base_delay"),
		AutoMigrate:     getBool(registry, "database.auto_migrate"),
	}
}

func buildRateLimitConfig(registry *definition.Registry) RateLimitConfig {
	return RateLimitConfig{
		ChallengeRate: RateConfig{
			Limit:    getInt64(registry, "ratelimit.challenge_rate.limit"),
			Period:   getDuration(registry, "ratelimit.challenge_rate.period"),
			Disabled: getBool(registry, "ratelimit.challenge_rate.disabled"),
		},
		Prefix:      getString(registry, "ratelimit.prefix"),
		MaxRetry:    getInt(registry, "ratelimit.max_retry"),
		ExcludedIPs: getStringSlice(registry, "ratelimit.excluded_ips"),
	}
}

func buildRedisConfig(registry *definition.Registry) RedisConfig {
	return RedisConfig{
		URL:      getString(registry, "redis.url"),
		Host:     getString(registry, "redis.host"),
		Port:     getString(registry, "redis.port"),
		Password: SensitiveString(getString(registry, "redis.password")),
		DB:       getInt(registry, "redis.db"),
		PoolSize: getInt(registry, "redis.pool_size"),
	}
}

func buildMonitoringConfig(registry *definition.Registry) MonitoringConfig {
	return MonitoringConfig{
		Enabled: getBool(registry, "monitoring.enabled"),
		Path:    getString(registry, "monitoring.path"),
	}
}

func buildRuntimeConfig(registry *definition.Registry) RuntimeConfig {
	return RuntimeConfig{
		Environment:         getString(registry, "runtime.environment"),
		LogLevel:            getString(registry, "runtime.log_level"),
		LogJSON:             getBool(registry, "runtime.log_json"),
		LogSource:           getBool(registry, "runtime.log_source"),
		ChallengeGCSchedule: getString(registry, "runtime.challenge_gc_schedule"),
	}
}
