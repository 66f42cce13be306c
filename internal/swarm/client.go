package swarm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
)

var (
	ErrRequestFailed     = errors.New("docker api request failed")
	ErrServiceNotFound   = errors.New("service not found")
	ErrContainerNotFound = errors.New("container not found")
	ErrUpdateConflict    = errors.New("service update conflict")
	ErrNotReplicated     = errors.New("service is not in replicated mode")
)

type Config struct {
	Host       string
	APIVersion string
	Timeout    time.Duration
}

// Client talks to the Docker Engine API over a unix socket or TCP.
type Client struct {
	http       *http.Client
	baseURL    string
	apiVersion string
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1.41"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	transport := &http.Transport{}
	baseURL := ""

	switch {
	case strings.HasPrefix(cfg.Host, "unix://"):
		socketPath := strings.TrimPrefix(cfg.Host, "unix://")
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		}
		baseURL = "http://docker"
	case strings.HasPrefix(cfg.Host, "tcp://"):
		baseURL = "http://" + strings.TrimPrefix(cfg.Host, "tcp://")
	case strings.HasPrefix(cfg.Host, "http://"), strings.HasPrefix(cfg.Host, "https://"):
		baseURL = cfg.Host
	default:
		return nil, fmt.Errorf("%w: unsupported docker host %q", ErrRequestFailed, cfg.Host)
	}

	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    baseURL,
		apiVersion: cfg.APIVersion,
	}, nil
}

func (c *Client) url(path string, query url.Values) string {
	u := fmt.Sprintf("%s/%s%s", c.baseURL, c.apiVersion, path)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path, query), body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	return resp, nil
}

func (c *Client) decode(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return responseError(resp.StatusCode, string(payload))
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func responseError(status int, payload string) error {
	lower := strings.ToLower(payload)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrServiceNotFound, strings.TrimSpace(payload))
	case strings.Contains(lower, "out of sequence"), strings.Contains(lower, "update in progress"):
		return fmt.Errorf("%w: %s", ErrUpdateConflict, strings.TrimSpace(payload))
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRequestFailed, status, strings.TrimSpace(payload))
	}
}

// ListServices returns all services carrying the given label key,
// regardless of its value.
func (c *Client) ListServices(ctx context.Context, label string) ([]Service, error) {
	filters, err := json.Marshal(map[string][]string{"label": {label}})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	resp, err := c.do(ctx, http.MethodGet, "/services", url.Values{"filters": {string(filters)}}, nil)
	if err != nil {
		return nil, err
	}

	var services []Service
	if err := c.decode(resp, &services); err != nil {
		return nil, err
	}
	return services, nil
}

func (c *Client) InspectService(ctx context.Context, serviceID string) (*Service, error) {
	resp, err := c.do(ctx, http.MethodGet, "/services/"+serviceID, nil, nil)
	if err != nil {
		return nil, err
	}

	var service Service
	if err := c.decode(resp, &service); err != nil {
		return nil, err
	}
	return &service, nil
}

// RunningContainers returns the container ids of the service's tasks
// whose desired state is running. Tasks without a container status yet
// are skipped.
func (c *Client) RunningContainers(ctx context.Context, serviceID string) ([]string, error) {
	filters, err := json.Marshal(map[string][]string{
		"service":       {serviceID},
		"desired-state": {"running"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	resp, err := c.do(ctx, http.MethodGet, "/tasks", url.Values{"filters": {string(filters)}}, nil)
	if err != nil {
		return nil, err
	}

	var tasks []Task
	if err := c.decode(resp, &tasks); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		if t.Status.ContainerStatus != nil && t.Status.ContainerStatus.ContainerID != "" {
			ids = append(ids, t.Status.ContainerStatus.ContainerID)
		}
	}
	return ids, nil
}

// ContainerStats fetches a single non-streaming stats sample. A 404
// means the container is not on this node.
func (c *Client) ContainerStats(ctx context.Context, containerID string) (*StatsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/containers/"+containerID+"/stats", url.Values{"stream": {"false"}}, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, ErrContainerNotFound
	}

	var stats StatsResponse
	if err := c.decode(resp, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpdateReplicas posts the service's full spec back with only the
// replica count changed, pinned to the version the caller read. A stale
// version surfaces as ErrUpdateConflict.
func (c *Client) UpdateReplicas(ctx context.Context, service *Service, replicas int) error {
	if service.Spec.Mode.Replicated == nil {
		return ErrNotReplicated
	}

	var spec map[string]interface{}
	if err := json.Unmarshal(service.RawSpec, &spec); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	mode, ok := spec["Mode"].(map[string]interface{})
	if !ok {
		return ErrNotReplicated
	}
	replicated, ok := mode["Replicated"].(map[string]interface{})
	if !ok {
		return ErrNotReplicated
	}
	replicated["Replicas"] = replicas

	body, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	query := url.Values{"version": {fmt.Sprintf("%d", service.Version.Index)}}
	resp, err := c.do(ctx, http.MethodPost, "/services/"+service.ID+"/update", query, bytes.NewReader(body))
	if err != nil {
		return err
	}

	logger.WithService(service.Spec.Name).Debugf("Posted replica update to %d (version %d)", replicas, service.Version.Index)
	return c.decode(resp, nil)
}

func (c *Client) NodeCount(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, "/nodes", nil, nil)
	if err != nil {
		return 0, err
	}

	var nodes []Node
	if err := c.decode(resp, &nodes); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/_ping", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ping returned status %d", ErrRequestFailed, resp.StatusCode)
	}
	return nil
}

func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
