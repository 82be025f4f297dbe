// Package config provides configuration management for fisher.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure for fisher.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Hooks     HooksConfig     `mapstructure:"hooks"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host to bind the server to
	Host string `mapstructure:"host"`

	// Port to listen on
	Port int `mapstructure:"port"`

	// Number of reverse proxies in front of fisher; the client address is
	// taken that many hops back in X-Forwarded-For
	BehindProxies int `mapstructure:"behind_proxies"`

	// Request timeouts
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// Maximum request body size in bytes
	MaxBodySize int64 `mapstructure:"max_body_size"`
}

// Address returns the host:port the server listens on.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// HooksConfig holds hook collection settings.
type HooksConfig struct {
	// Path is the directory hook scripts are collected from
	Path string `mapstructure:"path"`

	// Recursive descends into subdirectories
	Recursive bool `mapstructure:"recursive"`

	// Watch reloads hooks automatically when files change
	Watch bool `mapstructure:"watch"`
}

// JobsConfig holds scheduler settings.
type JobsConfig struct {
	// MaxThreads is the worker pool size
	MaxThreads int `mapstructure:"max_threads"`
}

// RateLimitConfig holds invalid-request rate limiting settings.
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Threshold is the number of invalid requests tolerated per window;
	// one more blocks the address
	Threshold int `mapstructure:"threshold"`

	// Window is the tracking window length
	Window time.Duration `mapstructure:"window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Validate checks the configuration for values fisher cannot run with.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port must be between 1 and 65535", ErrInvalidConfig)
	}
	if cfg.Server.BehindProxies < 0 {
		return fmt.Errorf("%w: server.behind_proxies must not be negative", ErrInvalidConfig)
	}
	if cfg.Hooks.Path == "" {
		return fmt.Errorf("%w: hooks.path is required", ErrInvalidConfig)
	}
	if cfg.Jobs.MaxThreads < 1 {
		return fmt.Errorf("%w: jobs.max_threads must be at least 1", ErrInvalidConfig)
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Threshold < 1 {
			return fmt.Errorf("%w: ratelimit.threshold must be at least 1", ErrInvalidConfig)
		}
		if cfg.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: ratelimit.window must be positive", ErrInvalidConfig)
		}
	}
	return nil
}
