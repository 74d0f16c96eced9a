package sqlite

import (
	"errors"
	"strings"
	"time"
)

const (
	memoryPath          = ":memory:"
	lockSuffix          = ".lock"
	defaultMaxOpenConns = 8
	defaultBusyTimeout  = 5 * time.Second
)

var ErrPathRequired = errors.New("sqlite: path is required")

// Config holds the SQLite side of the database section. Zero values select
// the driver defaults.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// BusyTimeout is how long a writer queues on the database lock.
	BusyTimeout time.Duration
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return ErrPathRequired
	}
	return nil
}

// InMemory reports whether the database lives only in process memory.
func (c *Config) InMemory() bool {
	return strings.TrimSpace(c.Path) == memoryPath
}

// LockPath names the file that serializes migrators of this database. In-memory
// databases have nothing to share and return "".
func (c *Config) LockPath() string {
	if c.InMemory() {
		return ""
	}
	return strings.TrimSpace(c.Path) + lockSuffix
}

// resolved returns a copy with defaults filled in. An in-memory database is
// pinned to one connection: any other connection would open its own empty
// database once the shared cache is dropped.
func (c *Config) resolved() Config {
	out := *c
	out.Path = strings.TrimSpace(out.Path)
	if out.MaxOpenConns <= 0 {
		out.MaxOpenConns = defaultMaxOpenConns
	}
	if c.InMemory() {
		out.MaxOpenConns = 1
	}
	if out.MaxIdleConns <= 0 || out.MaxIdleConns > out.MaxOpenConns {
		out.MaxIdleConns = out.MaxOpenConns
	}
	if out.BusyTimeout <= 0 {
		out.BusyTimeout = defaultBusyTimeout
	}
	return out
}
