package models

import "time"

type EventType string

const (
	EventTypeServiceAdded    EventType = "service_added"
	EventTypeServiceRemoved  EventType = "service_removed"
	EventTypeServiceUpdated  EventType = "service_updated"
	EventTypeServicesUpdated EventType = "services_updated"
	EventTypeMetricsUpdated  EventType = "metrics_updated"
	EventTypeScalingDecision EventType = "scaling_decision"
	EventTypeHealthCheck     EventType = "health_check"
)

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "info"
	SeverityWarning  EventSeverity = "warning"
	SeverityCritical EventSeverity = "critical"
)

// Event is the envelope carried on the internal bus and, when an AMQP
// sink is configured, published outward keyed by a routing key.
type Event struct {
	ID          string        `json:"id"`
	Type        EventType     `json:"type"`
	Severity    EventSeverity `json:"severity"`
	ServiceID   string        `json:"service_id,omitempty"`
	ServiceName string        `json:"service_name,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Message     string        `json:"message"`
	Data        interface{}   `json:"data,omitempty"`
}

func NewEvent(eventType EventType, serviceName, message string) *Event {
	return &Event{
		ID:          NewUUID(),
		Type:        eventType,
		Severity:    SeverityInfo,
		ServiceName: serviceName,
		Timestamp:   time.Now(),
		Message:     message,
	}
}

func (e *Event) WithSeverity(severity EventSeverity) *Event {
	e.Severity = severity
	return e
}

func (e *Event) WithServiceID(id string) *Event {
	e.ServiceID = id
	return e
}

func (e *Event) WithData(data interface{}) *Event {
	e.Data = data
	return e
}
