// internal/workers/insights/fetch-top-movers/config.go
package fetchtopmovers

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
