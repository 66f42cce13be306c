package registry

import (
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// CachedMetrics is the last sample set collected for one service, kept
// only for API reads. Samples are never persisted.
type CachedMetrics struct {
	ServiceID   string          `json:"service_id"`
	ServiceName string          `json:"service_name"`
	Metric      models.Metric   `json:"metric"`
	Samples     []models.Sample `json:"samples"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type MetricsCache struct {
	mu      sync.RWMutex
	entries map[string]CachedMetrics
}

func NewMetricsCache() *MetricsCache {
	return &MetricsCache{entries: make(map[string]CachedMetrics)}
}

func (c *MetricsCache) Record(serviceID, serviceName string, metric models.Metric, samples []models.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[serviceName] = CachedMetrics{
		ServiceID:   serviceID,
		ServiceName: serviceName,
		Metric:      metric,
		Samples:     samples,
		UpdatedAt:   time.Now(),
	}
}

func (c *MetricsCache) Latest(serviceName string) (CachedMetrics, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[serviceName]
	return entry, ok
}

func (c *MetricsCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]CachedMetrics)
}
