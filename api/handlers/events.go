package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
	"github.com/gin-gonic/gin"
)

type EventsHandler struct {
	history events.HistoryStore
}

func NewEventsHandler(history events.HistoryStore) *EventsHandler {
	return &EventsHandler{history: history}
}

// List serves the scaling audit trail, newest first. Filters: service,
// since, until (RFC 3339), limit, offset.
func (h *EventsHandler) List(c *gin.Context) {
	query, err := parseEventQuery(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, err := h.history.List(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query events"})
		return
	}

	total, err := h.history.Count(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count events"})
		return
	}

	if items == nil {
		items = []models.ScalingEvent{}
	}
	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"events": items,
	})
}

// Clear deletes history, scoped to one service when ?service= is given.
func (h *EventsHandler) Clear(c *gin.Context) {
	removed, err := h.history.Clear(c.Request.Context(), c.Query("service"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func parseEventQuery(c *gin.Context) (models.EventQuery, error) {
	query := models.EventQuery{Service: c.Query("service")}

	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, err
		}
		query.Since = t
	}
	if raw := c.Query("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return query, err
		}
		query.Until = t
	}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query, err
		}
		query.Limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return query, err
		}
		query.Offset = n
	}

	return query, nil
}
