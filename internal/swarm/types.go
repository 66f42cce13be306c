package swarm

import (
	"encoding/json"
	"time"
)

// Wire types for the subset of the Docker Engine API this daemon touches.

type Version struct {
	Index uint64 `json:"Index"`
}

type Service struct {
	ID        string    `json:"ID"`
	Version   Version   `json:"Version"`
	CreatedAt time.Time `json:"CreatedAt"`
	UpdatedAt time.Time `json:"UpdatedAt"`
	Spec      Spec      `json:"-"`

	// RawSpec preserves the full service spec exactly as the daemon
	// returned it. Updates must POST the complete spec back; a typed
	// round-trip would silently drop fields we do not model.
	RawSpec json.RawMessage `json:"-"`
}

func (s *Service) UnmarshalJSON(data []byte) error {
	type wire struct {
		ID        string          `json:"ID"`
		Version   Version         `json:"Version"`
		CreatedAt time.Time       `json:"CreatedAt"`
		UpdatedAt time.Time       `json:"UpdatedAt"`
		Spec      json.RawMessage `json:"Spec"`
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.ID = w.ID
	s.Version = w.Version
	s.CreatedAt = w.CreatedAt
	s.UpdatedAt = w.UpdatedAt
	s.RawSpec = w.Spec
	if len(w.Spec) == 0 {
		return nil
	}
	return json.Unmarshal(w.Spec, &s.Spec)
}

type Spec struct {
	Name         string            `json:"Name"`
	Labels       map[string]string `json:"Labels"`
	TaskTemplate TaskTemplate      `json:"TaskTemplate"`
	Mode         Mode              `json:"Mode"`
}

type TaskTemplate struct {
	Resources *Resources `json:"Resources,omitempty"`
	Placement *Placement `json:"Placement,omitempty"`
}

type Resources struct {
	Limits *Limits `json:"Limits,omitempty"`
}

type Limits struct {
	NanoCPUs    int64 `json:"NanoCPUs,omitempty"`
	MemoryBytes int64 `json:"MemoryBytes,omitempty"`
}

type Placement struct {
	MaxReplicas int `json:"MaxReplicas,omitempty"`
}

type Mode struct {
	Replicated *Replicated `json:"Replicated,omitempty"`
}

type Replicated struct {
	Replicas *uint64 `json:"Replicas,omitempty"`
}

// Replicas returns the desired replica count, false for non-replicated
// services (global mode cannot be scaled).
func (s *Service) Replicas() (int, bool) {
	if s.Spec.Mode.Replicated == nil || s.Spec.Mode.Replicated.Replicas == nil {
		return 0, false
	}
	return int(*s.Spec.Mode.Replicated.Replicas), true
}

// CPULimit returns the configured limit in cores, zero when unset.
func (s *Service) CPULimit() float64 {
	if s.Spec.TaskTemplate.Resources == nil || s.Spec.TaskTemplate.Resources.Limits == nil {
		return 0
	}
	return float64(s.Spec.TaskTemplate.Resources.Limits.NanoCPUs) / 1e9
}

func (s *Service) MemoryLimit() int64 {
	if s.Spec.TaskTemplate.Resources == nil || s.Spec.TaskTemplate.Resources.Limits == nil {
		return 0
	}
	return s.Spec.TaskTemplate.Resources.Limits.MemoryBytes
}

func (s *Service) MaxReplicasPerNode() int {
	if s.Spec.TaskTemplate.Placement == nil {
		return 0
	}
	return s.Spec.TaskTemplate.Placement.MaxReplicas
}

type Task struct {
	ID     string     `json:"ID"`
	NodeID string     `json:"NodeID"`
	Status TaskStatus `json:"Status"`
}

type TaskStatus struct {
	State           string           `json:"State"`
	ContainerStatus *ContainerStatus `json:"ContainerStatus,omitempty"`
}

type ContainerStatus struct {
	ContainerID string `json:"ContainerID"`
}

type Node struct {
	ID string `json:"ID"`
}

// StatsResponse is a one-shot /containers/{id}/stats sample.
type StatsResponse struct {
	CPUStats    CPUStats    `json:"cpu_stats"`
	PreCPUStats CPUStats    `json:"precpu_stats"`
	MemoryStats MemoryStats `json:"memory_stats"`
}

type CPUStats struct {
	CPUUsage    CPUUsage `json:"cpu_usage"`
	SystemUsage uint64   `json:"system_cpu_usage"`
	OnlineCPUs  uint32   `json:"online_cpus"`
}

type CPUUsage struct {
	TotalUsage  uint64   `json:"total_usage"`
	PercpuUsage []uint64 `json:"percpu_usage"`
}

type MemoryStats struct {
	Usage uint64 `json:"usage"`
	Limit uint64 `json:"limit"`
}
