package handlers

import (
	"net/http"

	"github.com/cristianemoyano/swarm-autoscaler/internal/metrics"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	registry *registry.Registry
	version  string
}

func NewHealthHandler(reg *registry.Registry, version string) *HealthHandler {
	return &HealthHandler{registry: reg, version: version}
}

// Health reports overall status. Degraded discovery still answers 200:
// the autoscaler keeps working from the stale snapshot, and flipping
// the health endpoint would get the task killed for a transient docker
// hiccup.
func (h *HealthHandler) Health(c *gin.Context) {
	health := h.registry.Health()

	status := "ok"
	if health.Degraded {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":           status,
		"version":          h.version,
		"degraded":         health.Degraded,
		"last_refresh":     health.LastRefresh,
		"last_tick":        health.LastTick,
		"snapshot_version": health.SnapshotVersion,
		"services":         health.Services,
	})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// Ready fails until the first successful discovery has produced a
// snapshot timestamp.
func (h *HealthHandler) Ready(c *gin.Context) {
	health := h.registry.Health()
	if health.LastRefresh.IsZero() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Metrics serves counters in Prometheus text exposition format.
func (h *HealthHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(metrics.Render()))
}
