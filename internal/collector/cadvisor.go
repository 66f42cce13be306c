package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// CadvisorCollector reads the whole cluster's container stats from a
// central cAdvisor in one call per pass. Preferred source in production:
// no per-node fan-out.
type CadvisorCollector struct {
	client   *http.Client
	endpoint string
}

type CadvisorCollectorConfig struct {
	Endpoint string
	Timeout  time.Duration
}

func NewCadvisorCollector(cfg CadvisorCollectorConfig) *CadvisorCollector {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &CadvisorCollector{
		client:   &http.Client{Timeout: timeout},
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
	}
}

type cadvisorContainer struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Subcontainers []cadvisorContainer `json:"subcontainers,omitempty"`
	Stats         []cadvisorStat      `json:"stats,omitempty"`
}

type cadvisorStat struct {
	Timestamp time.Time `json:"timestamp"`
	CPU       struct {
		Usage struct {
			Total uint64 `json:"total"`
		} `json:"usage"`
		SystemUsage uint64 `json:"system_usage"`
		NumCores    int    `json:"num_cores"`
	} `json:"cpu"`
	Memory struct {
		Usage uint64 `json:"usage"`
	} `json:"memory"`
}

func (c *CadvisorCollector) Collect(ctx context.Context, target Target) ([]models.Sample, error) {
	root, err := c.fetchContainers(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*cadvisorContainer)
	indexContainers(root, byID)

	samples := make([]models.Sample, 0, len(target.ContainerIDs))
	for _, containerID := range target.ContainerIDs {
		node, ok := byID[containerID]
		if !ok {
			logger.WithService(target.ServiceName).Debugf(
				"cAdvisor has no entry for container %.12s, dropping sample", containerID)
			continue
		}
		value, ok := sampleFromStats(node.Stats, target)
		if !ok {
			continue
		}
		samples = append(samples, models.Sample{
			ServiceID:   target.ServiceID,
			ContainerID: containerID,
			Metric:      target.Metric,
			Value:       value,
			Timestamp:   time.Now(),
		})
	}
	return samples, nil
}

func (c *CadvisorCollector) fetchContainers(ctx context.Context) (*cadvisorContainer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/v1.3/containers", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: cadvisor returned status %d", ErrCollectionFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}

	var root cadvisorContainer
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCollectionFailed, err)
	}
	return &root, nil
}

// indexContainers flattens the cAdvisor tree keyed by the docker
// container id embedded in names like /docker/<id>.
func indexContainers(node *cadvisorContainer, byID map[string]*cadvisorContainer) {
	if node == nil {
		return
	}
	if id, ok := strings.CutPrefix(node.Name, "/docker/"); ok && id != "" {
		byID[id] = node
	}
	for i := range node.Subcontainers {
		indexContainers(&node.Subcontainers[i], byID)
	}
}

// sampleFromStats computes a utilization percentage from the two most
// recent cAdvisor samples. CPU needs a rate, so fewer than two samples
// drops the replica for this pass.
func sampleFromStats(stats []cadvisorStat, target Target) (float64, bool) {
	if target.Metric == models.MetricMemory {
		if len(stats) == 0 || target.MemoryLimit <= 0 {
			return 0, false
		}
		last := stats[len(stats)-1]
		return float64(last.Memory.Usage) / float64(target.MemoryLimit) * 100, true
	}

	if len(stats) < 2 {
		return 0, false
	}
	prev, last := stats[len(stats)-2], stats[len(stats)-1]

	cpuDelta := float64(last.CPU.Usage.Total) - float64(prev.CPU.Usage.Total)
	systemDelta := float64(last.CPU.SystemUsage) - float64(prev.CPU.SystemUsage)
	cores := float64(last.CPU.NumCores)
	if cores == 0 {
		cores = 1
	}

	percent := 0.0
	if cpuDelta > 0 && systemDelta > 0 {
		percent = cpuDelta / systemDelta * cores * 100
	}

	if target.CPULimit > 0 {
		return percent / target.CPULimit, true
	}
	return percent / cores, true
}

func (c *CadvisorCollector) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnhealthy, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnhealthy, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrSourceUnhealthy, resp.StatusCode)
	}
	return nil
}

func (c *CadvisorCollector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
