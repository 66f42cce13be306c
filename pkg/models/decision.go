package models

import "time"

type ScaleDirection string

const (
	DirectionUp   ScaleDirection = "up"
	DirectionDown ScaleDirection = "down"
	DirectionSame ScaleDirection = "same"
)

// ScalingDecision is the outcome of evaluating one service in one tick.
type ScalingDecision struct {
	ServiceID    string    `json:"service_id"`
	ServiceName  string    `json:"service_name"`
	Metric       Metric    `json:"metric"`
	Aggregate    float64   `json:"aggregate"`
	FromReplicas int       `json:"from_replicas"`
	ToReplicas   int       `json:"to_replicas"`
	Reason       string    `json:"reason"`
	DryRun       bool      `json:"dry_run"`
	Timestamp    time.Time `json:"timestamp"`
}

func (d *ScalingDecision) Delta() int {
	return d.ToReplicas - d.FromReplicas
}

func (d *ScalingDecision) Direction() ScaleDirection {
	switch {
	case d.ToReplicas > d.FromReplicas:
		return DirectionUp
	case d.ToReplicas < d.FromReplicas:
		return DirectionDown
	default:
		return DirectionSame
	}
}

type ScalingEventStatus string

const (
	ScalingEventApplied ScalingEventStatus = "applied"
	ScalingEventDryRun  ScalingEventStatus = "dry-run"
	ScalingEventFailed  ScalingEventStatus = "failed"
)

// ScalingEvent is the audit record of a decision, persisted in history.
type ScalingEvent struct {
	ID           int64              `json:"id"`
	ServiceID    string             `json:"service_id"`
	ServiceName  string             `json:"service_name"`
	Metric       Metric             `json:"metric"`
	Aggregate    float64            `json:"aggregate"`
	FromReplicas int                `json:"from_replicas"`
	ToReplicas   int                `json:"to_replicas"`
	Direction    ScaleDirection     `json:"direction"`
	Reason       string             `json:"reason"`
	Status       ScalingEventStatus `json:"status"`
	Error        string             `json:"error,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

func NewScalingEvent(decision *ScalingDecision, status ScalingEventStatus, actionErr error) *ScalingEvent {
	event := &ScalingEvent{
		ServiceID:    decision.ServiceID,
		ServiceName:  decision.ServiceName,
		Metric:       decision.Metric,
		Aggregate:    decision.Aggregate,
		FromReplicas: decision.FromReplicas,
		ToReplicas:   decision.ToReplicas,
		Direction:    decision.Direction(),
		Reason:       decision.Reason,
		Status:       status,
		Timestamp:    decision.Timestamp,
	}
	if actionErr != nil {
		event.Error = actionErr.Error()
	}
	return event
}
