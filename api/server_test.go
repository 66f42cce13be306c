package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/config"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

type stubLister struct {
	services []swarm.Service
}

func (s *stubLister) ListServices(context.Context, string) ([]swarm.Service, error) {
	return s.services, nil
}

func labeledService(id, name string, replicas uint64) swarm.Service {
	return swarm.Service{
		ID:      id,
		Version: swarm.Version{Index: 1},
		Spec: swarm.Spec{
			Name:   name,
			Labels: map[string]string{"swarm.autoscale": "true"},
			Mode:   swarm.Mode{Replicated: &swarm.Replicated{Replicas: &replicas}},
		},
	}
}

type serverFixture struct {
	server   *Server
	registry *registry.Registry
	history  *events.MemoryHistory
}

func newServerFixture(t *testing.T, docker *swarm.Client, services ...swarm.Service) *serverFixture {
	t.Helper()

	bus := events.NewEventBus(64)
	t.Cleanup(bus.Close)

	reg := registry.New(&stubLister{services: services}, registry.NewCache(), events.NewPublisher(bus), registry.Config{
		RefreshInterval: time.Minute,
		Defaults:        registry.Defaults{PercentageMin: 25, PercentageMax: 85},
	})
	reg.Refresh(context.Background())

	history := events.NewMemoryHistory(100)

	server := NewServer(config.APIConfig{Port: 0}, "release", Deps{
		Registry: reg,
		History:  history,
		Docker:   docker,
		Version:  "test",
	})

	return &serverFixture{server: server, registry: reg, history: history}
}

func (f *serverFixture) request(t *testing.T, method, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)

	var body map[string]interface{}
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestServer_Health(t *testing.T) {
	fx := newServerFixture(t, nil, labeledService("svc1", "web", 3))

	rec, body := fx.request(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["degraded"])
	assert.Equal(t, float64(1), body["snapshot_version"])
	assert.Equal(t, float64(1), body["services"])
}

func TestServer_ReadyAndLive(t *testing.T) {
	fx := newServerFixture(t, nil, labeledService("svc1", "web", 3))

	rec, _ := fx.request(t, http.MethodGet, "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = fx.request(t, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_MetricsExposition(t *testing.T) {
	fx := newServerFixture(t, nil)

	rec, _ := fx.request(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestServer_ListServices(t *testing.T) {
	fx := newServerFixture(t, nil,
		labeledService("svc1", "web", 3),
		labeledService("svc2", "api", 2),
	)

	rec, body := fx.request(t, http.MethodGet, "/api/services")
	assert.Equal(t, http.StatusOK, rec.Code)

	services := body["services"].([]interface{})
	require.Len(t, services, 2)

	// Sorted by name.
	first := services[0].(map[string]interface{})
	assert.Equal(t, "api", first["name"])
}

func TestServer_ServiceMetrics(t *testing.T) {
	fx := newServerFixture(t, nil, labeledService("svc1", "web", 3))

	rec, _ := fx.request(t, http.MethodGet, "/api/services/web/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	fx.registry.RecordSamples(
		models.ServiceSpec{ID: "svc1", Name: "web", Metric: models.MetricCPU},
		[]models.Sample{{ServiceID: "svc1", ContainerID: "c1", Metric: models.MetricCPU, Value: 55, Timestamp: time.Now()}},
	)

	rec, body := fx.request(t, http.MethodGet, "/api/services/web/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	samples := body["samples"].([]interface{})
	require.Len(t, samples, 1)
}

func TestServer_RefreshAndClear(t *testing.T) {
	fx := newServerFixture(t, nil, labeledService("svc1", "web", 3))

	fx.registry.RecordSamples(
		models.ServiceSpec{ID: "svc1", Name: "web", Metric: models.MetricCPU},
		[]models.Sample{{ServiceID: "svc1", Value: 55}},
	)

	rec, _ := fx.request(t, http.MethodPost, "/api/refresh")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = fx.request(t, http.MethodPost, "/api/clear")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = fx.request(t, http.MethodGet, "/api/services/web/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Events(t *testing.T) {
	fx := newServerFixture(t, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, fx.history.Insert(context.Background(), &models.ScalingEvent{
			ServiceName: "web",
			Direction:   models.DirectionUp,
			Status:      models.ScalingEventApplied,
			Timestamp:   time.Now(),
		}))
	}

	rec, body := fx.request(t, http.MethodGet, "/api/events?service=web&limit=2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])
	assert.Len(t, body["events"].([]interface{}), 2)

	rec, _ = fx.request(t, http.MethodGet, "/api/events?since=not-a-time")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = fx.request(t, http.MethodPost, "/api/events/clear")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["removed"])
}

func TestServer_ContainerStats(t *testing.T) {
	dockerAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1.41/containers/c1/stats":
			w.Write([]byte(`{
				"cpu_stats": {"cpu_usage": {"total_usage": 200}, "system_cpu_usage": 2000, "online_cpus": 2},
				"precpu_stats": {"cpu_usage": {"total_usage": 100}, "system_cpu_usage": 1000},
				"memory_stats": {"usage": 512, "limit": 1024}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer dockerAPI.Close()

	docker, err := swarm.NewClient(swarm.Config{Host: dockerAPI.URL})
	require.NoError(t, err)

	fx := newServerFixture(t, docker)

	rec, body := fx.request(t, http.MethodGet, "/api/container/stats?id=c1&metric=cpu")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "c1", body["ContainerId"])
	assert.NotNil(t, body["cpu"])

	rec, body = fx.request(t, http.MethodGet, "/api/container/stats?id=c1&metric=memory")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 50.0, body["memory"].(float64), 0.001)

	rec, _ = fx.request(t, http.MethodGet, "/api/container/stats?id=ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = fx.request(t, http.MethodGet, "/api/container/stats")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
