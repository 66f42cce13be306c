package config

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid configuration")

func (c *Config) Validate() error {
	if c.Autoscaler.Interval <= 0 {
		return fmt.Errorf("%w: autoscaler.interval must be positive", ErrInvalidConfig)
	}
	if c.Registry.RefreshInterval <= 0 {
		return fmt.Errorf("%w: registry.refresh_interval must be positive", ErrInvalidConfig)
	}
	if c.Autoscaler.PercentageMin >= c.Autoscaler.PercentageMax {
		return fmt.Errorf("%w: autoscaler.percentage_min (%g) must be below autoscaler.percentage_max (%g)",
			ErrInvalidConfig, c.Autoscaler.PercentageMin, c.Autoscaler.PercentageMax)
	}
	if c.Autoscaler.PercentageMin < 0 {
		return fmt.Errorf("%w: autoscaler.percentage_min must not be negative", ErrInvalidConfig)
	}
	if c.Autoscaler.Workers <= 0 {
		return fmt.Errorf("%w: autoscaler.workers must be positive", ErrInvalidConfig)
	}

	// Network calls are the only blocking points; their timeouts must
	// stay strictly below the tick that owns them so one dead dependency
	// cannot stall a whole tick.
	if c.Metrics.Timeout <= 0 || c.Metrics.Timeout >= c.Autoscaler.Interval {
		return fmt.Errorf("%w: metrics.timeout must be positive and below autoscaler.interval", ErrInvalidConfig)
	}
	if c.Docker.Timeout <= 0 || c.Docker.Timeout >= c.Registry.RefreshInterval {
		return fmt.Errorf("%w: docker.timeout must be positive and below registry.refresh_interval", ErrInvalidConfig)
	}

	switch c.Metrics.Source {
	case SourceDocker:
		if c.Metrics.DiscoveryDNS == "" {
			return fmt.Errorf("%w: metrics.discovery_dns is required for the docker source", ErrInvalidConfig)
		}
	case SourceCadvisor:
		if c.Metrics.CadvisorURL == "" {
			return fmt.Errorf("%w: metrics.cadvisor_url is required for the cadvisor source", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown metrics.source %q", ErrInvalidConfig, c.Metrics.Source)
	}

	if c.Docker.Host == "" {
		return fmt.Errorf("%w: docker.host is required", ErrInvalidConfig)
	}
	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("%w: database.host is required when database.enabled", ErrInvalidConfig)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("%w: api.port must be a valid port", ErrInvalidConfig)
	}
	return nil
}
