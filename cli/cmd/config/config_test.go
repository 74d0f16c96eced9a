package config

import (
	"bytes"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/sigauth/sigauth/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatten(t *testing.T) {
	t.Run("Should key leaves by their dotted path", func(t *testing.T) {
		cfg := pkgconfig.Default()
		cfg.Server.Port = 7001
		cfg.Server.CORS.MaxAge = 600
		values := Flatten(cfg)
		assert.Equal(t, 7001, values["server.port"])
		assert.Equal(t, 600, values["server.cors.max_age"])
		assert.Contains(t, values, "auth.user_cache_size")
	})

	t.Run("Should redact set secrets and leave empty ones empty", func(t *testing.T) {
		cfg := pkgconfig.Default()
		cfg.Auth.BearerSecret = "0123456789abcdef0123456789abcdef"
		cfg.Redis.URL = "redis://:pw@cache:6379/0"
		cfg.Database.Password = ""
		values := Flatten(cfg)
		assert.Equal(t, redacted, values["auth.bearer_secret"])
		assert.Equal(t, redacted, values["redis.url"])
		assert.Equal(t, "", values["database.password"])
	})

	t.Run("Should render durations as strings", func(t *testing.T) {
		cfg := pkgconfig.Default()
		cfg.Auth.ChallengeTTL = 90 * time.Second
		assert.Equal(t, "1m30s", Flatten(cfg)["auth.challenge_ttl"])
	})
}

func TestFormatOutput(t *testing.T) {
	values := map[string]any{"server.port": 5266, "auth.bearer_secret": redacted}
	sources := map[string]pkgconfig.SourceType{
		"server.port":        pkgconfig.SourceCLI,
		"auth.bearer_secret": pkgconfig.SourceEnv,
	}

	t.Run("Should print a sorted table with sources", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatOutput(&buf, values, sources, "table"))
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 3)
		assert.Contains(t, lines[0], "SOURCE")
		assert.True(t, strings.HasPrefix(lines[1], "auth.bearer_secret"))
		assert.Contains(t, lines[2], string(pkgconfig.SourceCLI))
	})

	t.Run("Should emit yaml with a config envelope", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, formatOutput(&buf, values, nil, "yaml"))
		assert.Contains(t, buf.String(), "config:")
		assert.Contains(t, buf.String(), "server.port: 5266")
		assert.NotContains(t, buf.String(), "sources:")
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		err := formatOutput(&bytes.Buffer{}, values, nil, "xml")
		assert.ErrorContains(t, err, "unsupported format")
	})
}
