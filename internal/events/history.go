package events

import (
	"context"
	"sync"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

const defaultQueryLimit = 100

// HistoryStore is the persisted scaling-event audit trail. The Postgres
// implementation lives in pkg/database/queries; MemoryHistory backs
// deployments without a database and tests.
type HistoryStore interface {
	Insert(ctx context.Context, event *models.ScalingEvent) error
	List(ctx context.Context, query models.EventQuery) ([]models.ScalingEvent, error)
	Count(ctx context.Context, query models.EventQuery) (int, error)
	Clear(ctx context.Context, service string) (int64, error)
}

// MemoryHistory keeps the most recent maxEvents scaling events,
// evicting oldest-first.
type MemoryHistory struct {
	mu        sync.RWMutex
	events    []models.ScalingEvent
	nextID    int64
	maxEvents int
}

func NewMemoryHistory(maxEvents int) *MemoryHistory {
	if maxEvents <= 0 {
		maxEvents = 10000
	}
	return &MemoryHistory{nextID: 1, maxEvents: maxEvents}
}

func (h *MemoryHistory) Insert(_ context.Context, event *models.ScalingEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	event.ID = h.nextID
	h.nextID++
	h.events = append(h.events, *event)

	if overflow := len(h.events) - h.maxEvents; overflow > 0 {
		h.events = h.events[overflow:]
	}
	return nil
}

func (h *MemoryHistory) List(_ context.Context, query models.EventQuery) ([]models.ScalingEvent, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	limit := query.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	matched := h.filter(query)

	// Newest first, as the API serves them.
	out := make([]models.ScalingEvent, 0, limit)
	skipped := 0
	for i := len(matched) - 1; i >= 0 && len(out) < limit; i-- {
		if skipped < query.Offset {
			skipped++
			continue
		}
		out = append(out, matched[i])
	}
	return out, nil
}

func (h *MemoryHistory) Count(_ context.Context, query models.EventQuery) (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.filter(query)), nil
}

func (h *MemoryHistory) filter(query models.EventQuery) []models.ScalingEvent {
	matched := make([]models.ScalingEvent, 0, len(h.events))
	for _, e := range h.events {
		if query.Service != "" && e.ServiceName != query.Service {
			continue
		}
		if !query.Since.IsZero() && e.Timestamp.Before(query.Since) {
			continue
		}
		if !query.Until.IsZero() && e.Timestamp.After(query.Until) {
			continue
		}
		matched = append(matched, e)
	}
	return matched
}

func (h *MemoryHistory) Clear(_ context.Context, service string) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if service == "" {
		n := int64(len(h.events))
		h.events = nil
		return n, nil
	}

	kept := h.events[:0]
	var removed int64
	for _, e := range h.events {
		if e.ServiceName == service {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	h.events = kept
	return removed, nil
}
