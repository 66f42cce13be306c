package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/cristianemoyano/swarm-autoscaler/internal/collector"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
	"github.com/gin-gonic/gin"
)

// ContainerInspector reads one-shot stats from the local docker daemon.
type ContainerInspector interface {
	ContainerStats(ctx context.Context, containerID string) (*swarm.StatsResponse, error)
}

// StatsHandler answers peer fan-out queries. Each autoscaler instance
// exposes the stats of containers scheduled on its own node; a 404
// tells the asking peer to try elsewhere.
type StatsHandler struct {
	docker ContainerInspector
}

func NewStatsHandler(docker ContainerInspector) *StatsHandler {
	return &StatsHandler{docker: docker}
}

func (h *StatsHandler) Get(c *gin.Context) {
	containerID := c.Query("id")
	if containerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	stats, err := h.docker.ContainerStats(c.Request.Context(), containerID)
	if err != nil {
		if errors.Is(err, swarm.ErrContainerNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "container not on this node"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read container stats"})
		return
	}

	payload := gin.H{"ContainerId": containerID}

	metric, _ := models.ParseMetric(c.DefaultQuery("metric", string(models.MetricCPU)))
	switch metric {
	case models.MetricMemory:
		payload["memory"] = collector.MemoryPercent(stats)
	default:
		cpuLimit, _ := strconv.ParseFloat(c.Query("cpuLimit"), 64)
		payload["cpu"] = collector.CPUPercent(stats, cpuLimit)
	}

	c.JSON(http.StatusOK, payload)
}
