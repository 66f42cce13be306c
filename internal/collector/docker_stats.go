package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// DockerCollector gathers per-replica stats through the container-stats
// endpoint every autoscaler instance serves. A local daemon only sees
// the containers scheduled on its own node, so each replica's stats are
// requested from all peers (DNS-discovered) and the first node that has
// the container answers.
type DockerCollector struct {
	client   *http.Client
	resolver *net.Resolver
	dnsName  string
	port     int
	hostsTTL time.Duration

	mu            sync.Mutex
	cachedHosts   []string
	hostsFetched  time.Time
}

type DockerCollectorConfig struct {
	DiscoveryDNS  string
	DiscoveryPort int
	Timeout       time.Duration

	// HostsTTL bounds how long a resolved peer list is reused; half the
	// refresh interval keeps the list fresh without a lookup per call.
	HostsTTL time.Duration
}

func NewDockerCollector(cfg DockerCollectorConfig) *DockerCollector {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	ttl := cfg.HostsTTL
	if ttl == 0 {
		ttl = 15 * time.Second
	}
	port := cfg.DiscoveryPort
	if port == 0 {
		port = 8080
	}

	return &DockerCollector{
		client:   &http.Client{Timeout: timeout},
		resolver: net.DefaultResolver,
		dnsName:  cfg.DiscoveryDNS,
		port:     port,
		hostsTTL: ttl,
	}
}

type statsPayload struct {
	ContainerID string   `json:"ContainerId"`
	CPU         *float64 `json:"cpu,omitempty"`
	Memory      *float64 `json:"memory,omitempty"`
}

func (p *statsPayload) value(metric models.Metric) (float64, bool) {
	switch metric {
	case models.MetricMemory:
		if p.Memory != nil {
			return *p.Memory, true
		}
	default:
		if p.CPU != nil {
			return *p.CPU, true
		}
	}
	return 0, false
}

func (c *DockerCollector) Collect(ctx context.Context, target Target) ([]models.Sample, error) {
	hosts, err := c.clusterHosts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: peer discovery: %v", ErrCollectionFailed, err)
	}

	samples := make([]models.Sample, 0, len(target.ContainerIDs))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, containerID := range target.ContainerIDs {
		wg.Add(1)
		go func(containerID string) {
			defer wg.Done()

			payload, ok := c.queryPeers(ctx, hosts, containerID, target)
			if !ok {
				logger.WithService(target.ServiceName).Debugf(
					"No node reported stats for container %.12s, dropping sample", containerID)
				return
			}
			value, ok := payload.value(target.Metric)
			if !ok {
				return
			}

			mu.Lock()
			samples = append(samples, models.Sample{
				ServiceID:   target.ServiceID,
				ContainerID: containerID,
				Metric:      target.Metric,
				Value:       value,
				Timestamp:   time.Now(),
			})
			mu.Unlock()
		}(containerID)
	}
	wg.Wait()

	return samples, nil
}

// queryPeers asks every peer in parallel and returns the first
// successful answer. Nodes without the container return 404 and are
// ignored.
func (c *DockerCollector) queryPeers(ctx context.Context, hosts []string, containerID string, target Target) (*statsPayload, bool) {
	if len(hosts) == 0 {
		return nil, false
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan *statsPayload, len(hosts))
	for _, host := range hosts {
		go func(host string) {
			results <- c.queryHost(ctx, host, containerID, target)
		}(host)
	}

	for range hosts {
		if payload := <-results; payload != nil {
			return payload, true
		}
	}
	return nil, false
}

func (c *DockerCollector) queryHost(ctx context.Context, host, containerID string, target Target) *statsPayload {
	query := url.Values{
		"id":     {containerID},
		"metric": {string(target.Metric)},
	}
	if target.Metric == models.MetricCPU {
		query.Set("cpuLimit", fmt.Sprintf("%g", target.CPULimit))
	}

	endpoint := fmt.Sprintf("http://%s/api/container/stats?%s",
		net.JoinHostPort(host, fmt.Sprintf("%d", c.port)), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var payload statsPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil
	}
	return &payload
}

func (c *DockerCollector) clusterHosts(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedHosts != nil && time.Since(c.hostsFetched) < c.hostsTTL {
		return c.cachedHosts, nil
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, c.dnsName)
	if err != nil {
		// Serve the stale list if there is one; discovery hiccups must
		// not lose a whole tick.
		if c.cachedHosts != nil {
			return c.cachedHosts, nil
		}
		return nil, err
	}

	hosts := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			hosts = append(hosts, ip4.String())
		}
	}

	c.cachedHosts = hosts
	c.hostsFetched = time.Now()
	return hosts, nil
}

func (c *DockerCollector) HealthCheck(ctx context.Context) error {
	if _, err := c.clusterHosts(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceUnhealthy, err)
	}
	return nil
}

func (c *DockerCollector) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
