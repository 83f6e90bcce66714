// internal/workers/matching/recommend-technicians/config.go
package recommendtechnicians

import (
	"fmt"
	"time"
)

type Config struct {
	Timeout                   time.Duration `mapstructure:"timeout"`
	DefaultMaxRecommendations int           `mapstructure:"default_max_recommendations"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:                   30 * time.Second,
		DefaultMaxRecommendations: 5,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.DefaultMaxRecommendations <= 0 {
		return fmt.Errorf("default_max_recommendations must be positive")
	}
	return nil
}
