package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:       "http://127.0.0.1:0",
			Timeout:       2 * time.Second,
			RetryAttempts: 2,
			RetryBackoff:  1 * time.Millisecond,
			UserAgent:     "reelfeed-test/1.0",
		},
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Cache: CacheConfig{
			MaxSnapshotItems: 50,
			PageSize:         30,
		},
		Search: defaultConfig().Search,
		Log:    LogConfig{Level: "off"},
	}
}
