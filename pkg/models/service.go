package models

import "time"

type Metric string

const (
	MetricCPU    Metric = "cpu"
	MetricMemory Metric = "memory"
)

func ParseMetric(s string) (Metric, bool) {
	switch Metric(s) {
	case MetricCPU:
		return MetricCPU, true
	case MetricMemory:
		return MetricMemory, true
	default:
		return MetricCPU, false
	}
}

type DecreaseMode string

const (
	DecreaseModeMedian DecreaseMode = "MEDIAN"
	DecreaseModeMax    DecreaseMode = "MAX"
)

func ParseDecreaseMode(s string) (DecreaseMode, bool) {
	switch DecreaseMode(s) {
	case DecreaseModeMedian:
		return DecreaseModeMedian, true
	case DecreaseModeMax:
		return DecreaseModeMax, true
	default:
		return DecreaseModeMedian, false
	}
}

// ServiceSpec is the resolved autoscaling configuration of one swarm
// service. It is owned by the registry and published only as part of a
// complete snapshot; consumers treat it as a value.
type ServiceSpec struct {
	ID                    string       `json:"id"`
	Name                  string       `json:"name"`
	Autoscale             bool         `json:"autoscale"`
	Metric                Metric       `json:"metric"`
	MinReplicas           int          `json:"min_replicas"`
	MaxReplicas           int          `json:"max_replicas"`
	PercentageMin         float64      `json:"percentage_min"`
	PercentageMax         float64      `json:"percentage_max"`
	DecreaseMode          DecreaseMode `json:"decrease_mode"`
	DisableManualReplicas bool         `json:"disable_manual_replicas"`
	CurrentReplicas       int          `json:"current_replicas"`

	// CPULimit is the configured limit in cores (NanoCPUs / 1e9),
	// zero when the service has no limit.
	CPULimit    float64 `json:"cpu_limit"`
	MemoryLimit int64   `json:"memory_limit"`

	MaxReplicasPerNode int `json:"max_replicas_per_node,omitempty"`

	// SpecVersion is the swarm object version, required for updates.
	SpecVersion uint64    `json:"spec_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ThresholdsValid reports whether the percentage band is well-formed.
// Services with an inverted or empty band are excluded from evaluation.
func (s ServiceSpec) ThresholdsValid() bool {
	return s.PercentageMin < s.PercentageMax
}

func (s ServiceSpec) WithinBounds(replicas int) bool {
	return replicas >= s.MinReplicas && replicas <= s.MaxReplicas
}

// Equal compares every field that participates in the snapshot
// fingerprint. SpecVersion is deliberately included: a new version means
// the service object changed even when the resolved config did not.
func (s ServiceSpec) Equal(o ServiceSpec) bool {
	return s.ID == o.ID &&
		s.Name == o.Name &&
		s.Autoscale == o.Autoscale &&
		s.Metric == o.Metric &&
		s.MinReplicas == o.MinReplicas &&
		s.MaxReplicas == o.MaxReplicas &&
		s.PercentageMin == o.PercentageMin &&
		s.PercentageMax == o.PercentageMax &&
		s.DecreaseMode == o.DecreaseMode &&
		s.DisableManualReplicas == o.DisableManualReplicas &&
		s.CurrentReplicas == o.CurrentReplicas &&
		s.CPULimit == o.CPULimit &&
		s.MemoryLimit == o.MemoryLimit &&
		s.MaxReplicasPerNode == o.MaxReplicasPerNode &&
		s.SpecVersion == o.SpecVersion
}

// Snapshot is an immutable view of all autoscale-eligible services.
// The registry swaps whole snapshots atomically; readers never observe
// one under construction.
type Snapshot struct {
	Version  uint64                 `json:"version"`
	Services map[string]ServiceSpec `json:"services"`
	BuiltAt  time.Time              `json:"built_at"`
}

func (s *Snapshot) Get(serviceID string) (ServiceSpec, bool) {
	spec, ok := s.Services[serviceID]
	return spec, ok
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Services)
}
