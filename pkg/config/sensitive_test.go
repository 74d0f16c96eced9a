package config

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBearerSecret = "bearer-secret-0123456789abcdef0123"
	testDBPassword   = "pg-hunter2"
	testRedisSecret  = "redis-hunter2"
)

func configWithSecrets() *Config {
	cfg := Default()
	cfg.Auth.BearerSecret = SensitiveString(testBearerSecret)
	cfg.Database.Password = SensitiveString(testDBPassword)
	cfg.Redis.Password = SensitiveString(testRedisSecret)
	return cfg
}

func TestSensitiveString(t *testing.T) {
	t.Run("Should keep the raw secret behind Value", func(t *testing.T) {
		cfg := configWithSecrets()
		assert.Equal(t, testBearerSecret, cfg.Auth.BearerSecret.Value())
		assert.Len(t, []byte(cfg.Auth.BearerSecret.Value()), 34)
	})

	t.Run("Should redact when formatted", func(t *testing.T) {
		cfg := configWithSecrets()
		for _, verb := range []string{"%s", "%v", "%+v"} {
			out := fmt.Sprintf(verb, cfg.Auth)
			assert.NotContains(t, out, testBearerSecret, verb)
			assert.Contains(t, out, redacted, verb)
		}
		assert.NotContains(t, fmt.Sprintf("%+v", cfg.Database), testDBPassword)
	})

	t.Run("Should redact a whole config marshalled to JSON", func(t *testing.T) {
		data, err := json.Marshal(configWithSecrets())
		require.NoError(t, err)
		for _, secret := range []string{testBearerSecret, testDBPassword, testRedisSecret} {
			assert.NotContains(t, string(data), secret)
		}
		assert.Contains(t, string(data), redacted)
	})

	t.Run("Should leave unset secrets empty", func(t *testing.T) {
		data, err := json.Marshal(Default().Redis)
		require.NoError(t, err)
		assert.NotContains(t, string(data), redacted)
		assert.Empty(t, Default().Redis.Password.String())
	})

	t.Run("Should read the raw value back from JSON", func(t *testing.T) {
		var auth struct {
			BearerSecret SensitiveString `json:"bearer_secret"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"bearer_secret":"`+testBearerSecret+`"}`), &auth))
		assert.Equal(t, testBearerSecret, auth.BearerSecret.Value())
	})
}
