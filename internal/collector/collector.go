package collector

import (
	"context"
	"errors"

	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

var (
	ErrCollectionFailed = errors.New("metric collection failed")
	ErrSourceUnhealthy  = errors.New("metrics source unhealthy")
)

// Target identifies one service's replicas for a collection pass.
type Target struct {
	ServiceID    string
	ServiceName  string
	ContainerIDs []string
	Metric       models.Metric

	// CPULimit in cores and MemoryLimit in bytes, zero when the service
	// has no configured limit.
	CPULimit    float64
	MemoryLimit int64
}

// Collector returns zero or more normalized utilization samples for a
// target. Replicas that cannot be reached are excluded from the result,
// never reported as zero; an empty result is not an error.
type Collector interface {
	Collect(ctx context.Context, target Target) ([]models.Sample, error)

	// HealthCheck verifies the collector can reach its data source.
	HealthCheck(ctx context.Context) error

	Close() error
}

// CPUPercent converts a one-shot stats sample into utilization relative
// to the configured CPU limit. A replica capped at half a core running
// at full quota reports 100, and bursts above the limit exceed 100.
// Without a limit the value is relative to the cores it can see.
func CPUPercent(stats *swarm.StatsResponse, cpuLimit float64) float64 {
	cpuCount := float64(stats.CPUStats.OnlineCPUs)
	if cpuCount == 0 {
		if n := len(stats.CPUStats.CPUUsage.PercpuUsage); n > 0 {
			cpuCount = float64(n)
		} else {
			cpuCount = 1
		}
	}

	cpuDelta := float64(stats.CPUStats.CPUUsage.TotalUsage) - float64(stats.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(stats.CPUStats.SystemUsage) - float64(stats.PreCPUStats.SystemUsage)

	percent := 0.0
	if cpuDelta > 0 && systemDelta > 0 {
		percent = cpuDelta / systemDelta * cpuCount * 100
	}

	if cpuLimit > 0 {
		return percent / cpuLimit
	}
	return percent / cpuCount
}

// MemoryPercent is usage over the runtime-reported limit.
func MemoryPercent(stats *swarm.StatsResponse) float64 {
	limit := float64(stats.MemoryStats.Limit)
	if limit <= 0 {
		return 0
	}
	return float64(stats.MemoryStats.Usage) / limit * 100
}
