package config

import "time"

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:          "127.0.0.1",
			Port:          8000,
			BehindProxies: 0,
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   60 * time.Second,
			MaxBodySize:   1 << 20,
		},
		Hooks: HooksConfig{
			Path:      "hooks",
			Recursive: false,
			Watch:     true,
		},
		Jobs: JobsConfig{
			MaxThreads: 1,
		},
		RateLimit: RateLimitConfig{
			Enabled:   true,
			Threshold: 10,
			Window:    time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
