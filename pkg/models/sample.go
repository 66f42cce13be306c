package models

import "time"

// Sample is one replica's normalized utilization value. Samples live for
// a single evaluation tick; they are cached for API reads but never
// persisted.
type Sample struct {
	ServiceID   string    `json:"service_id"`
	ContainerID string    `json:"container_id"`
	Metric      Metric    `json:"metric"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

func SampleValues(samples []Sample) []float64 {
	values := make([]float64, len(samples))
	for i, s := range samples {
		values[i] = s.Value
	}
	return values
}
