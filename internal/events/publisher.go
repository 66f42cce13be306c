package events

import (
	"fmt"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// Publisher gives the registry and decision engine typed publish
// methods; all of them are fire-and-forget.
type Publisher struct {
	bus *EventBus
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) ServiceAdded(spec models.ServiceSpec) {
	event := models.NewEvent(models.EventTypeServiceAdded, spec.Name, "Service added to autoscaling").
		WithServiceID(spec.ID).
		WithData(spec)
	p.bus.Publish(event)
}

func (p *Publisher) ServiceRemoved(spec models.ServiceSpec) {
	event := models.NewEvent(models.EventTypeServiceRemoved, spec.Name, "Service removed from autoscaling").
		WithServiceID(spec.ID).
		WithData(spec)
	p.bus.Publish(event)
}

func (p *Publisher) ServiceUpdated(spec models.ServiceSpec) {
	event := models.NewEvent(models.EventTypeServiceUpdated, spec.Name, "Service configuration updated").
		WithServiceID(spec.ID).
		WithData(spec)
	p.bus.Publish(event)
}

func (p *Publisher) ServicesUpdated(snapshot *models.Snapshot) {
	msg := fmt.Sprintf("Snapshot version %d with %d services", snapshot.Version, snapshot.Len())
	event := models.NewEvent(models.EventTypeServicesUpdated, "", msg).
		WithData(snapshot)
	p.bus.Publish(event)
}

func (p *Publisher) MetricsUpdated(serviceID, serviceName string, samples []models.Sample) {
	msg := fmt.Sprintf("Collected %d samples", len(samples))
	event := models.NewEvent(models.EventTypeMetricsUpdated, serviceName, msg).
		WithServiceID(serviceID).
		WithData(samples)
	p.bus.Publish(event)
}

func (p *Publisher) ScalingDecision(scalingEvent *models.ScalingEvent) {
	msg := fmt.Sprintf("Scale %s %d -> %d (%s)",
		scalingEvent.Direction, scalingEvent.FromReplicas, scalingEvent.ToReplicas, scalingEvent.Status)
	event := models.NewEvent(models.EventTypeScalingDecision, scalingEvent.ServiceName, msg).
		WithServiceID(scalingEvent.ServiceID).
		WithData(scalingEvent)

	if scalingEvent.Status == models.ScalingEventFailed {
		event.WithSeverity(models.SeverityCritical)
	}
	p.bus.Publish(event)
}

func (p *Publisher) HealthCheck(status interface{}) {
	event := models.NewEvent(models.EventTypeHealthCheck, "", "Health check").
		WithData(status)
	p.bus.Publish(event)
}
