package events

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

func insertEvents(t *testing.T, h *MemoryHistory, count int, service string, base time.Time) {
	t.Helper()
	for i := 0; i < count; i++ {
		err := h.Insert(context.Background(), &models.ScalingEvent{
			ServiceID:    "id-" + service,
			ServiceName:  service,
			Metric:       models.MetricCPU,
			FromReplicas: i,
			ToReplicas:   i + 1,
			Direction:    models.DirectionUp,
			Status:       models.ScalingEventApplied,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
}

func TestMemoryHistory_InsertAssignsIDs(t *testing.T) {
	h := NewMemoryHistory(10)

	first := &models.ScalingEvent{ServiceName: "web", Timestamp: time.Now()}
	second := &models.ScalingEvent{ServiceName: "web", Timestamp: time.Now()}
	require.NoError(t, h.Insert(context.Background(), first))
	require.NoError(t, h.Insert(context.Background(), second))

	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, int64(2), second.ID)
}

func TestMemoryHistory_ListNewestFirst(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 5, "web", base)

	events, err := h.List(context.Background(), models.EventQuery{})
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i := 1; i < len(events); i++ {
		assert.True(t, !events[i].Timestamp.After(events[i-1].Timestamp))
	}
	assert.Equal(t, 4, events[0].FromReplicas)
}

func TestMemoryHistory_FilterByService(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 3, "web", base)
	insertEvents(t, h, 2, "worker", base)

	events, err := h.List(context.Background(), models.EventQuery{Service: "worker"})
	require.NoError(t, err)
	assert.Len(t, events, 2)
	for _, e := range events {
		assert.Equal(t, "worker", e.ServiceName)
	}

	count, err := h.Count(context.Background(), models.EventQuery{Service: "web"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestMemoryHistory_TimeWindow(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 10, "web", base)

	events, err := h.List(context.Background(), models.EventQuery{
		Since: base.Add(2 * time.Minute),
		Until: base.Add(5 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, events, 4)
}

func TestMemoryHistory_Pagination(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 10, "web", base)

	page, err := h.List(context.Background(), models.EventQuery{Limit: 3, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 3)

	// Newest first with two skipped: events 8, 7, 6 by insertion order.
	assert.Equal(t, 7, page[0].FromReplicas)
	assert.Equal(t, 6, page[1].FromReplicas)
	assert.Equal(t, 5, page[2].FromReplicas)
}

func TestMemoryHistory_RetentionEvictsOldest(t *testing.T) {
	h := NewMemoryHistory(5)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 8, "web", base)

	count, err := h.Count(context.Background(), models.EventQuery{})
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	events, err := h.List(context.Background(), models.EventQuery{Limit: 100})
	require.NoError(t, err)
	// The oldest three are gone.
	assert.Equal(t, 3, events[len(events)-1].FromReplicas)
}

func TestMemoryHistory_Clear(t *testing.T) {
	h := NewMemoryHistory(100)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	insertEvents(t, h, 3, "web", base)
	insertEvents(t, h, 2, "worker", base)

	removed, err := h.Clear(context.Background(), "web")
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	count, _ := h.Count(context.Background(), models.EventQuery{})
	assert.Equal(t, 2, count)

	removed, err = h.Clear(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
}

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(4)
	defer bus.Close()

	decisions := bus.Subscribe(models.EventTypeScalingDecision)
	all := bus.SubscribeAll()

	bus.Publish(models.NewEvent(models.EventTypeScalingDecision, "web", "scaled"))
	bus.Publish(models.NewEvent(models.EventTypeHealthCheck, "", "ok"))

	select {
	case event := <-decisions:
		assert.Equal(t, models.EventTypeScalingDecision, event.Type)
	case <-time.After(time.Second):
		t.Fatal("typed subscriber missed the event")
	}

	received := 0
	for received < 2 {
		select {
		case <-all:
			received++
		case <-time.After(time.Second):
			t.Fatalf("catch-all subscriber got %d of 2 events", received)
		}
	}
}

func TestEventBus_FullChannelDropsInsteadOfBlocking(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Close()

	ch := bus.Subscribe(models.EventTypeHealthCheck)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Publish(models.NewEvent(models.EventTypeHealthCheck, "", fmt.Sprintf("ping %d", i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, ch, 1)
}

func TestEventLogger_PersistsScalingDecisions(t *testing.T) {
	bus := NewEventBus(16)
	history := NewMemoryHistory(100)
	eventLogger := NewEventLogger(history, bus.SubscribeAll())
	eventLogger.Start()

	publisher := NewPublisher(bus)
	publisher.ScalingDecision(&models.ScalingEvent{
		ServiceID:   "svc1",
		ServiceName: "web",
		Direction:   models.DirectionUp,
		Status:      models.ScalingEventApplied,
		Timestamp:   time.Now(),
	})
	publisher.HealthCheck("ok")

	assert.Eventually(t, func() bool {
		count, _ := history.Count(context.Background(), models.EventQuery{})
		return count == 1
	}, time.Second, 10*time.Millisecond)

	bus.Close()
	eventLogger.Stop()
}

// The bus hands every subscriber the same payload pointer, so the
// logger must not mutate it while another sink serializes it.
func TestEventLogger_PersistDoesNotMutateBusPayload(t *testing.T) {
	bus := NewEventBus(256)
	history := NewMemoryHistory(1000)
	eventLogger := NewEventLogger(history, bus.SubscribeAll())
	eventLogger.Start()

	marshaled := make(chan struct{})
	sink := bus.SubscribeAll()
	go func() {
		defer close(marshaled)
		for event := range sink {
			_, err := json.Marshal(event.Data)
			assert.NoError(t, err)
		}
	}()

	publisher := NewPublisher(bus)
	published := make([]*models.ScalingEvent, 0, 200)
	for i := 0; i < 200; i++ {
		scalingEvent := &models.ScalingEvent{
			ServiceID:   "svc1",
			ServiceName: "web",
			Direction:   models.DirectionUp,
			Status:      models.ScalingEventApplied,
			Timestamp:   time.Now(),
		}
		published = append(published, scalingEvent)
		publisher.ScalingDecision(scalingEvent)
	}

	assert.Eventually(t, func() bool {
		count, _ := history.Count(context.Background(), models.EventQuery{})
		return count == 200
	}, 2*time.Second, 10*time.Millisecond)

	bus.Close()
	eventLogger.Stop()
	<-marshaled

	// Row IDs live on the stored copies only.
	for _, scalingEvent := range published {
		assert.Zero(t, scalingEvent.ID)
	}
	events, err := history.List(context.Background(), models.EventQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotZero(t, events[0].ID)
}
