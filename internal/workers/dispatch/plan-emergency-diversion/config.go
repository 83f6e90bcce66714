// internal/workers/dispatch/plan-emergency-diversion/config.go
package planemergencydiversion

import (
	"fmt"
	"time"
)

type Config struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	AuditTimeout time.Duration `mapstructure:"audit_timeout"`
}

func DefaultConfig() *Config {
	return &Config{
		Timeout:      30 * time.Second,
		AuditTimeout: 3 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.AuditTimeout <= 0 {
		return fmt.Errorf("audit_timeout must be positive")
	}
	return nil
}
