package config

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager(t *testing.T) {
	t.Run("Should return nil before the first load", func(t *testing.T) {
		assert.Nil(t, NewManager(nil).Get())
	})

	t.Run("Should keep the previous configuration when a load fails", func(t *testing.T) {
		m := NewManager(NewService())
		first, err := m.Load(context.Background(), &mockSource{
			sourceType: SourceCLI,
			data:       map[string]any{"server": map[string]any{"port": 6001}},
		})
		require.NoError(t, err)
		_, err = m.Load(context.Background(), &mockSource{sourceType: SourceYAML, loadErr: errors.New("boom")})
		require.Error(t, err)
		assert.Same(t, first, m.Get())
		assert.Len(t, m.Sources(), 1)
	})
}

func TestFromContext(t *testing.T) {
	t.Run("Should return the attached manager's configuration", func(t *testing.T) {
		m := NewManager(NewService())
		cfg, err := m.Load(context.Background())
		require.NoError(t, err)
		ctx := ContextWithManager(context.Background(), m)
		assert.Same(t, m, ManagerFromContext(ctx))
		assert.Same(t, cfg, FromContext(ctx))
	})

	t.Run("Should fall back to a default configuration", func(t *testing.T) {
		cfg := FromContext(context.Background())
		require.NotNil(t, cfg)
		assert.NotEmpty(t, cfg.Server.Host)
	})
}
