package collector

import (
	"context"
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// MockCollector serves canned per-service values in tests.
type MockCollector struct {
	mu       sync.Mutex
	values   map[string][]float64
	err      error
	requests []Target
}

func NewMockCollector() *MockCollector {
	return &MockCollector{values: make(map[string][]float64)}
}

func (m *MockCollector) SetValues(serviceID string, values []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[serviceID] = values
}

func (m *MockCollector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockCollector) Requests() []Target {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Target, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockCollector) Collect(_ context.Context, target Target) ([]models.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, target)
	if m.err != nil {
		return nil, m.err
	}

	values := m.values[target.ServiceID]
	samples := make([]models.Sample, 0, len(values))
	for i, v := range values {
		containerID := ""
		if i < len(target.ContainerIDs) {
			containerID = target.ContainerIDs[i]
		}
		samples = append(samples, models.Sample{
			ServiceID:   target.ServiceID,
			ContainerID: containerID,
			Metric:      target.Metric,
			Value:       v,
			Timestamp:   time.Now(),
		})
	}
	return samples, nil
}

func (m *MockCollector) HealthCheck(context.Context) error { return nil }

func (m *MockCollector) Close() error { return nil }
