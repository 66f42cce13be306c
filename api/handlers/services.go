package handlers

import (
	"net/http"
	"sort"

	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
	"github.com/gin-gonic/gin"
)

type ServicesHandler struct {
	registry *registry.Registry
	history  events.HistoryStore
}

func NewServicesHandler(reg *registry.Registry, history events.HistoryStore) *ServicesHandler {
	return &ServicesHandler{registry: reg, history: history}
}

// List returns the current snapshot, services sorted by name.
func (h *ServicesHandler) List(c *gin.Context) {
	snapshot := h.registry.Cache().Snapshot()

	services := make([]models.ServiceSpec, 0, snapshot.Len())
	for _, spec := range snapshot.Services {
		services = append(services, spec)
	}
	sort.Slice(services, func(i, j int) bool {
		return services[i].Name < services[j].Name
	})

	c.JSON(http.StatusOK, gin.H{
		"version":  snapshot.Version,
		"built_at": snapshot.BuiltAt,
		"services": services,
	})
}

// GetMetrics returns the most recent samples collected for a service.
func (h *ServicesHandler) GetMetrics(c *gin.Context) {
	name := c.Param("name")

	cached, ok := h.registry.Metrics().Latest(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no metrics recorded for service " + name})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"service_id":   cached.ServiceID,
		"service_name": cached.ServiceName,
		"metric":       cached.Metric,
		"samples":      cached.Samples,
		"updated_at":   cached.UpdatedAt,
	})
}

// Refresh forces a discovery pass and returns the resulting state.
func (h *ServicesHandler) Refresh(c *gin.Context) {
	h.registry.Refresh(c.Request.Context())
	c.JSON(http.StatusOK, h.registry.Health())
}

// ClearMetrics drops cached samples and the persisted scaling history.
// The service snapshot stays: the next tick just collects from scratch.
func (h *ServicesHandler) ClearMetrics(c *gin.Context) {
	h.registry.ClearMetrics()

	removed, err := h.history.Clear(c.Request.Context(), "")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared", "events_removed": removed})
}
