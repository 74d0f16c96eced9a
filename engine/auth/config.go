package auth

import (
	"fmt"
	"time"
)

// Config holds the lifetimes and limits of the authentication protocol.
type Config struct {
	BearerTTL    time.Duration `json:"bearer_ttl"`
	ChallengeTTL time.Duration `json:"challenge_ttl"`
	RefreshTTL   time.Duration `json:"refresh_ttl"`

	// MaxUsernameBytes bounds usernames in bytes, not runes.
	MaxUsernameBytes int `json:"max_username_bytes"`

	// MaxKeysPerUser caps active keys; zero means unbounded.
	MaxKeysPerUser int `json:"max_keys_per_user"`

	// EnumerationProtection answers challenge requests for unknown users with
	// a synthetic challenge instead of not_found.
	EnumerationProtection bool `json:"enumeration_protection"`
}

// DefaultConfig returns the default auth configuration
func DefaultConfig() *Config {
	return &Config{
		BearerTTL:             15 * time.Minute,
		ChallengeTTL:          5 * time.Minute,
		RefreshTTL:            30 * 24 * time.Hour,
		MaxUsernameBytes:      255,
		MaxKeysPerUser:        0,
		EnumerationProtection: true,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BearerTTL <= 0 || c.ChallengeTTL <= 0 || c.RefreshTTL <= 0 {
		return fmt.Errorf("auth lifetimes must be positive")
	}
	if c.MaxUsernameBytes <= 0 {
		return fmt.Errorf("max username length must be positive")
	}
	if c.MaxKeysPerUser < 0 {
		return fmt.Errorf("max keys per user cannot be negative")
	}
	return nil
}
