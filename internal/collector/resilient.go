package collector

import (
	"context"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/resilience"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// ResilientCollector guards a source with a circuit breaker so a dead
// metrics backend fails fast instead of burning the whole tick on
// timeouts, service after service.
type ResilientCollector struct {
	collector      Collector
	circuitBreaker *resilience.CircuitBreaker
}

type ResilientCollectorConfig struct {
	Collector   Collector
	MaxFailures int
	Timeout     time.Duration
}

func NewResilientCollector(cfg ResilientCollectorConfig) *ResilientCollector {
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:        "collector",
		MaxFailures: cfg.MaxFailures,
		Timeout:     cfg.Timeout,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &ResilientCollector{
		collector:      cfg.Collector,
		circuitBreaker: cb,
	}
}

func (c *ResilientCollector) Collect(ctx context.Context, target Target) ([]models.Sample, error) {
	var samples []models.Sample

	err := c.circuitBreaker.Execute(func() error {
		var err error
		samples, err = c.collector.Collect(ctx, target)
		return err
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}

func (c *ResilientCollector) HealthCheck(ctx context.Context) error {
	return c.collector.HealthCheck(ctx)
}

func (c *ResilientCollector) BreakerState() resilience.State {
	return c.circuitBreaker.State()
}

func (c *ResilientCollector) Close() error {
	return c.collector.Close()
}
