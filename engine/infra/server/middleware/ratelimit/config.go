package ratelimit

import (
	"fmt"
	"time"

	"github.com/ulule/limiter/v3"
)

// Config represents rate limiting configuration
type Config struct {
	// ChallengeRate bounds challenge requests per client IP.
	ChallengeRate RateConfig `json:"challenge_rate" yaml:"challenge_rate" mapstructure:"challenge_rate"`

	// Options
	Prefix   string `json:"prefix"    yaml:"prefix"    mapstructure:"prefix"`
	MaxRetry int    `json:"max_retry" yaml:"max_retry" mapstructure:"max_retry"`

	// Excluded IPs
	ExcludedIPs []string `json:"excluded_ips" yaml:"excluded_ips" mapstructure:"excluded_ips"`
}

// RateConfig represents a single rate limit configuration
type RateConfig struct {
	Period   time.Duration `json:"period"   yaml:"period"             mapstructure:"period"`
	Limit    int64         `json:"limit"    yaml:"limit"              mapstructure:"limit"`
	Disabled bool          `json:"disabled" yaml:"disabled,omitempty" mapstructure:"disabled"`
}

// DefaultConfig returns default rate limiting configuration
func DefaultConfig() *Config {
	return &Config{
		ChallengeRate: RateConfig{
			Limit:  5,
			Period: 1 * time.Minute,
		},
		Prefix:      "sigauth:ratelimit",
		MaxRetry:    3,
		ExcludedIPs: []string{},
	}
}

// ToLimiterRate converts RateConfig to limiter.Rate
func (rc RateConfig) ToLimiterRate() limiter.Rate {
	return limiter.Rate{
		Period: rc.Period,
		Limit:  rc.Limit,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ChallengeRate.Disabled {
		return nil
	}
	if c.ChallengeRate.Limit <= 0 {
		return fmt.Errorf("challenge rate limit must be positive")
	}
	if c.ChallengeRate.Period <= 0 {
		return fmt.Errorf("challenge rate period must be positive")
	}
	return nil
}
