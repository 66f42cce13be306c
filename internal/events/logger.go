package events

import (
	"context"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// EventLogger drains the bus, writes every event to the structured log
// and persists scaling decisions into history.
type EventLogger struct {
	history   HistoryStore
	eventChan <-chan *models.Event
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewEventLogger(history HistoryStore, eventChan <-chan *models.Event) *EventLogger {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventLogger{
		history:   history,
		eventChan: eventChan,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (l *EventLogger) Start() {
	go l.run()
}

func (l *EventLogger) Stop() {
	l.cancel()
	<-l.done
}

func (l *EventLogger) run() {
	defer close(l.done)
	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.eventChan:
			if !ok {
				return
			}
			l.processEvent(event)
		}
	}
}

func (l *EventLogger) processEvent(event *models.Event) {
	entry := logger.WithFields(map[string]interface{}{
		"event_type": event.Type,
		"service":    event.ServiceName,
		"severity":   event.Severity,
	})

	switch event.Severity {
	case models.SeverityCritical:
		entry.Error(event.Message)
	case models.SeverityWarning:
		entry.Warn(event.Message)
	default:
		entry.Info(event.Message)
	}

	if event.Type == models.EventTypeScalingDecision {
		l.persistScalingEvent(event)
	}
}

func (l *EventLogger) persistScalingEvent(event *models.Event) {
	scalingEvent, ok := event.Data.(*models.ScalingEvent)
	if !ok {
		return
	}

	// The bus fans the same pointer out to every subscriber. Insert
	// assigns the row ID, so it gets a private copy; the shared payload
	// stays read-only.
	record := *scalingEvent
	if err := l.history.Insert(l.ctx, &record); err != nil {
		logger.Errorf("Failed to persist scaling event: %v", err)
	}
}
