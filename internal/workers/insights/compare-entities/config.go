// internal/workers/insights/compare-entities/config.go
package compareentities

import "time"

type Config struct {
	DefaultMetric string
	Timeout       time.Duration
}

func LoadConfig() *Config {
	return &Config{
		DefaultMetric: "hype_score",
		Timeout:       30 * time.Second,
	}
}
