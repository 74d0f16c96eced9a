package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sigauth/sigauth/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())

	t.Run("Should connect by host and port", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r, err := NewRedis(ctx, &Config{Host: mr.Host(), Port: mr.Port()})
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		require.NoError(t, r.HealthCheck(ctx))
		require.NoError(t, r.Client().Set(ctx, "k", "v", time.Minute).Err())
		assert.True(t, mr.Exists("k"))
	})

	t.Run("Should connect by URL and select the database", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r, err := NewRedis(ctx, &Config{URL: "redis://" + mr.Addr() + "/2"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		assert.Equal(t, 2, r.Client().Options().DB)
	})

	t.Run("Should reject an empty config", func(t *testing.T) {
		_, err := NewRedis(ctx, &Config{})
		assert.Error(t, err)
		_, err = NewRedis(ctx, nil)
		assert.Error(t, err)
	})

	t.Run("Should fail when the server is unreachable", func(t *testing.T) {
		_, err := NewRedis(ctx, &Config{Host: "127.0.0.1", Port: "1", PingTimeout: time.Second, MaxRetries: -1})
		assert.ErrorContains(t, err, "pinging Redis server")
	})

	t.Run("Should report unhealthy after the server goes away", func(t *testing.T) {
		mr := miniredis.NewMiniRedis()
		require.NoError(t, mr.Start())
		r, err := NewRedis(ctx, &Config{Host: mr.Host(), Port: mr.Port(), MaxRetries: -1})
		require.NoError(t, err)
		t.Cleanup(func() { _ = r.Close() })
		mr.Close()
		assert.Error(t, r.HealthCheck(ctx))
	})

	t.Run("Should close idempotently", func(t *testing.T) {
		mr := miniredis.RunT(t)
		r, err := NewRedis(ctx, &Config{Host: mr.Host(), Port: mr.Port()})
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.NoError(t, r.Close())
	})
}

func TestApplyConfigToOptions(t *testing.T) {
	t.Run("Should derive a TLS server name from the address", func(t *testing.T) {
		client, err := buildRedisClient(&Config{Host: "cache.internal", TLSEnabled: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		require.NotNil(t, client.Options().TLSConfig)
		assert.Equal(t, "cache.internal", client.Options().TLSConfig.ServerName)
		assert.Equal(t, "cache.internal:6379", client.Options().Addr)
	})
}
