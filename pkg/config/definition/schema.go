package definition

import (
	"reflect"
	"time"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	stringType   = reflect.TypeOf("")
	intType      = reflect.TypeOf(0)
	int64Type    = reflect.TypeOf(int64(0))
	boolType     = reflect.TypeOf(false)
	sliceType    = reflect.TypeOf([]string{})
)

// CreateRegistry creates and populates the configuration registry.
// Defaults live here and nowhere else.
func CreateRegistry() *Registry {
	registry := NewRegistry()
	registerServerFields(registry)
	registerAuthFields(registry)
	registerDatabaseFields(registry)
	registerRateLimitFields(registry)
	registerRedisFields(registry)
	registerMonitoringFields(registry)
	registerRuntimeFields(registry)
	return registry
}

func registerServerFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "server.host",
		Default: "0.0.0.0",
		CLIFlag: "host",
		EnvVar:  "SERVER_HOST",
		Type:    stringType,
		Help:    "Host interface for the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:      "server.port",
		Default:   5266,
		CLIFlag:   "port",
		Shorthand: "p",
		EnvVar:    "SERVER_PORT",
		Type:      intType,
		Help:      "Port for the HTTP server",
	})
	registry.Register(&FieldDef{
		Path:    "server.read_timeout",
		Default: 15 * time.Second,
		EnvVar:  "SERVER_READ_TIMEOUT",
		Type:    durationType,
		Help:    "Maximum duration for reading a request",
	})
	registry.Register(&FieldDef{
		Path:    "server.write_timeout",
		Default: 15 * time.Second,
		EnvVar:  "SERVER_WRITE_TIMEOUT",
		Type:    durationType,
		Help:    "Maximum duration for writing a response",
	})
	registry.Register(&FieldDef{
		Path:    "server.idle_timeout",
		Default: 60 * time.Second,
		EnvVar:  "SERVER_IDLE_TIMEOUT",
		Type:    durationType,
		Help:    "Keep-alive idle timeout",
	})
	registry.Register(&FieldDef{
		Path:    "server.shutdown_timeout",
		Default: 5 * time.Second,
		EnvVar:  "SERVER_SHUTDOWN_TIMEOUT",
		Type:    durationType,
		Help:    "Grace period for in-flight requests on shutdown",
	})
	registry.Register(&FieldDef{
		Path:    "server.trusted_proxies",
		Default: []string{},
		EnvVar:  "SERVER_TRUSTED_PROXIES",
		Type:    sliceType,
		Help:    "Proxy CIDRs whose forwarding headers are trusted for client IPs",
	})
	registry.Register(&FieldDef{
		Path:    "server.cors_enabled",
		Default: false,
		CLIFlag: "cors",
		EnvVar:  "SERVER_CORS_ENABLED",
		Type:    boolType,
		Help:    "Enable CORS",
	})
	registry.Register(&FieldDef{
		Path:    "server.cors.allowed_origins",
		Default: []string{"http://localhost:3000"},
		EnvVar:  "SERVER_CORS_ALLOWED_ORIGINS",
		Type:    sliceType,
		Help:    "Allowed CORS origins",
	})
	registry.Register(&FieldDef{
		Path:    "server.cors.allow_credentials",
		Default: true,
		EnvVar:  "SERVER_CORS_ALLOW_CREDENTIALS",
		Type:    boolType,
		Help:    "Allow credentials in CORS requests",
	})
	registry.Register(&FieldDef{
		Path:    "server.cors.max_age",
		Default: 86400,
		EnvVar:  "SERVER_CORS_MAX_AGE",
		Type:    intType,
		Help:    "CORS preflight max age in seconds",
	})
}

func registerAuthFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "auth.bearer_secret",
		Default: "",
		EnvVar:  "AUTH_BEARER_SECRET",
		Type:    stringType,
		Help:    "HMAC secret for bearer tokens, at least 32 bytes",
	})
	registry.Register(&FieldDef{
		Path:    "auth.bearer_ttl",
		Default: 15 * time.Minute,
		EnvVar:  "AUTH_BEARER_TTL",
		Type:    durationType,
		Help:    "Bearer token lifetime",
	})
	registry.Register(&FieldDef{
		Path:    "auth.challenge_ttl",
		Default: 5 * time.Minute,
		EnvVar:  "AUTH_CHALLENGE_TTL",
		Type:    durationType,
		Help:    "Challenge lifetime",
	})
	registry.Register(&FieldDef{
		Path:    "auth.refresh_ttl",
		Default: 30 * 24 * time.Hour,
		EnvVar:  "AUTH_REFRESH_TTL",
		Type:    durationType,
		Help:    "Refresh token lifetime",
	})
	registry.Register(&FieldDef{
		Path:    "auth.max_username_bytes",
		Default: 255,
		EnvVar:  "AUTH_MAX_USERNAME_BYTES",
		Type:    intType,
		Help:    "Maximum username length in bytes",
	})
	registry.Register(&FieldDef{
		Path:    "auth.max_keys_per_user",
		Default: 0,
		EnvVar:  "AUTH_MAX_KEYS_PER_USER",
		Type:    intType,
		Help:    "Cap on active keys per user, 0 for unbounded",
	})
	registry.Register(&FieldDef{
		Path:    "auth.enumeration_protection",
		Default: true,
		EnvVar:  "AUTH_ENUMERATION_PROTECTION",
		Type:    boolType,
		Help:    "Answer challenge requests for unknown users with synthetic challenges",
	})
	registry.Register(&FieldDef{
		Path:    "auth.user_cache_ttl",
		Default: 5 * time.Minute,
		EnvVar:  "AUTH_USER_CACHE_TTL",
		Type:    durationType,
		Help:    "Lifetime of cached user lookups",
	})
	registry.Register(&FieldDef{
		Path:    "auth.user_cache_size",
		Default: 10000,
		EnvVar:  "AUTH_USER_CACHE_SIZE",
		Type:    intType,
		Help:    "Entries in the in-process user cache used without redis (0 disables it)",
	})
}

func registerDatabaseFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "database.driver",
		Default: "sqlite",
		CLIFlag: "db-driver",
		EnvVar:  "DB_DRIVER",
		Type:    stringType,
		Help:    "Database driver: sqlite or postgres",
	})
	registry.Register(&FieldDef{
		Path:    "database.path",
		Default: "auth.db",
		CLIFlag: "db-path",
		EnvVar:  "DB_PATH",
		Type:    stringType,
		Help:    "SQLite database file",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_string",
		Default: "",
		CLIFlag: "db-conn-string",
		EnvVar:  "DB_CONN_STRING",
		Type:    stringType,
		Help:    "PostgreSQL connection string",
	})
	registry.Register(&FieldDef{
		Path:    "database.host",
		Default: "localhost",
		CLIFlag: "db-host",
		EnvVar:  "DB_HOST",
		Type:    stringType,
		Help:    "PostgreSQL host",
	})
	registry.Register(&FieldDef{
		Path:    "database.port",
		Default: "5432",
		CLIFlag: "db-port",
		EnvVar:  "DB_PORT",
		Type:    stringType,
		Help:    "PostgreSQL port",
	})
	registry.Register(&FieldDef{
		Path:    "database.user",
		Default: "postgres",
		CLIFlag: "db-user",
		EnvVar:  "DB_USER",
		Type:    stringType,
		Help:    "PostgreSQL user",
	})
	registry.Register(&FieldDef{
		Path:    "database.password",
		Default: "",
		CLIFlag: "db-password",
		EnvVar:  "DB_PASSWORD",
		Type:    stringType,
		Help:    "PostgreSQL password",
	})
	registry.Register(&FieldDef{
		Path:    "database.name",
		Default: "sigauth",
		CLIFlag: "db-name",
		EnvVar:  "DB_NAME",
		Type:    stringType,
		Help:    "PostgreSQL database name",
	})
	registry.Register(&FieldDef{
		Path:    "database.ssl_mode",
		Default: "disable",
		CLIFlag: "db-ssl-mode",
		EnvVar:  "DB_SSL_MODE",
		Type:    stringType,
		Help:    "PostgreSQL sslmode",
	})
	registry.Register(&FieldDef{
		Path:    "database.max_open_conns",
		Default: 10,
		EnvVar:  "DB_MAX_OPEN_CONNS",
		Type:    intType,
		Help:    "Maximum open PostgreSQL connections",
	})
	registry.Register(&FieldDef{
		Path:    "database.max_idle_conns",
		Default: 2,
		EnvVar:  "DB_MAX_IDLE_CONNS",
		Type:    intType,
		Help:    "Minimum idle PostgreSQL connections kept warm",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_lifetime",
		Default: time.Hour,
		EnvVar:  "DB_CONN_MAX_LIFETIME",
		Type:    durationType,
		Help:    "Maximum connection lifetime",
	})
	registry.Register(&FieldDef{
		Path:    "database.conn_max_idle_time",
		Default: 30 * time.Minute,
		EnvVar:  "DB_CONN_MAX_IDLE_TIME",
		Type:    durationType,
		Help:    "Maximum connection idle time",
	})
	registry.Register(&FieldDef{
		Path:    "database.connect_retries",
		Default: 5,
		EnvVar:  "DB_CONNECT_RETRIES",
		Type:    intType,
		Help:    "Retries when the store is unreachable at startup",
	})
	registry.Register(&FieldDef{
		Path:    "database.retry_base_delay",
		Default: 500 * time.Millisecond,
		EnvVar:  "DB_RETRY_BASE_DELAY",
		Type:    durationType,
		Help:    "Initial backoff between startup connection attempts",
	})
	registry.Register(&FieldDef{
		Path:    "database.auto_migrate",
		Default: true,
		CLIFlag: "db-auto-migrate",
		EnvVar:  "DB_AUTO_MIGRATE",
		Type:    boolType,
		Help:    "Apply migrations on startup",
	})
}

func registerRateLimitFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "ratelimit.challenge_rate.limit",
		Default: int64(5),
		EnvVar:  "RATELIMIT_CHALLENGE_LIMIT",
		Type:    int64Type,
		Help:    "Challenge requests allowed per client IP per period",
	})
	registry.Register(&FieldDef{
		Path:    "ratelimit.challenge_rate.period",
		Default: time.Minute,
		EnvVar:  "RATELIMIT_CHALLENGE_PERIOD",
		Type:    durationType,
		Help:    "Fixed window for challenge requests",
	})
	registry.Register(&FieldDef{
		Path:    "ratelimit.challenge_rate.disabled",
		Default: false,
		EnvVar:  "RATELIMIT_CHALLENGE_DISABLED",
		Type:    boolType,
		Help:    "Disable the challenge rate limit",
	})
	registry.Register(&FieldDef{
		Path:    "ratelimit.prefix",
		Default: "sigauth:ratelimit",
		EnvVar:  "RATELIMIT_PREFIX",
		Type:    stringType,
		Help:    "Key prefix in the rate limit store",
	})
	registry.Register(&FieldDef{
		Path:    "ratelimit.max_retry",
		Default: 3,
		EnvVar:  "RATELIMIT_MAX_RETRY",
		Type:    intType,
		Help:    "Retries on redis optimistic lock contention",
	})
	registry.Register(&FieldDef{
		Path:    "ratelimit.excluded_ips",
		Default: []string{},
		EnvVar:  "RATELIMIT_EXCLUDED_IPS",
		Type:    sliceType,
		Help:    "Client IPs exempt from rate limiting",
	})
}

func registerRedisFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "redis.url",
		Default: "",
		CLIFlag: "redis-url",
		EnvVar:  "REDIS_URL",
		Type:    stringType,
		Help:    "Redis URL; leave empty to keep rate limits in memory",
	})
	registry.Register(&FieldDef{
		Path:    "redis.host",
		Default: "",
		EnvVar:  "REDIS_HOST",
		Type:    stringType,
		Help:    "Redis host",
	})
	registry.Register(&FieldDef{
		Path:    "redis.port",
		Default: "6379",
		EnvVar:  "REDIS_PORT",
		Type:    stringType,
		Help:    "Redis port",
	})
	registry.Register(&FieldDef{
		Path:    "redis.password",
		Default: "",
		EnvVar:  "REDIS_PASSWORD",
		Type:    stringType,
		Help:    "Redis password",
	})
	registry.Register(&FieldDef{
		Path:    "redis.db",
		Default: 0,
		EnvVar:  "REDIS_DB",
		Type:    intType,
		Help:    "Redis database index",
	})
	registry.Register(&FieldDef{
		Path:    "redis.pool_size",
		Default: 10,
		EnvVar:  "REDIS_POOL_SIZE",
		Type:    intType,
		Help:    "Redis connection pool size",
	})
}

func registerMonitoringFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "monitoring.enabled",
		Default: true,
		EnvVar:  "MONITORING_ENABLED",
		Type:    boolType,
		Help:    "Expose Prometheus metrics",
	})
	registry.Register(&FieldDef{
		Path:    "monitoring.path",
		Default: "/metrics",
		EnvVar:  "MONITORING_PATH",
		Type:    stringType,
		Help:    "Path of the metrics endpoint",
	})
}

func registerRuntimeFields(registry *Registry) {
	registry.Register(&FieldDef{
		Path:    "runtime.environment",
		Default: "development",
		EnvVar:  "RUNTIME_ENVIRONMENT",
		Type:    stringType,
		Help:    "Deployment environment",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_level",
		Default: "info",
		CLIFlag: "log-level",
		EnvVar:  "RUNTIME_LOG_LEVEL",
		Type:    stringType,
		Help:    "Log level: debug, info, warn, error",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_json",
		Default: false,
		CLIFlag: "log-json",
		EnvVar:  "RUNTIME_LOG_JSON",
		Type:    boolType,
		Help:    "Emit logs as JSON",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.log_source",
		Default: false,
		CLIFlag: "log-source",
		EnvVar:  "RUNTIME_LOG_SOURCE",
		Type:    boolType,
		Help:    "Include source locations in logs",
	})
	registry.Register(&FieldDef{
		Path:    "runtime.challenge_gc_schedule",
		Default: "@every 1m",
		EnvVar:  "RUNTIME_CHALLENGE_GC_SCHEDULE",
		Type:    stringType,
		Help:    "Cron schedule for purging expired challenges",
	})
}
