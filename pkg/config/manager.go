package config

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Manager owns the loaded configuration and hands out consistent snapshots.
// Configuration is read once at startup; the bearer secret in particular is
// captured by the token issuer and never changes for the life of the process.
type Manager struct {
	Service Service
	current atomic.Pointer[Config]
	mu      sync.Mutex
	sources []Source
}

// NewManager creates a new configuration manager.
func NewManager(service Service) *Manager {
	if service == nil {
		service = NewService()
	}
	return &Manager{Service: service}
}

// Load loads configuration from sources and stores it.
func (m *Manager) Load(ctx context.Context, sources ...Source) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, err := m.Service.Load(ctx, sources...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	m.sources = append([]Source(nil), sources...)
	m.current.Store(cfg)
	return cfg, nil
}

// Sources returns a copy of the sources used by the last successful Load.
func (m *Manager) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// Get returns the current configuration, or nil before the first Load.
func (m *Manager) Get() *Config {
	return m.current.Load()
}
