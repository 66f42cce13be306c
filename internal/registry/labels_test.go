package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

func testService(labels map[string]string) *swarm.Service {
	replicas := uint64(3)
	return &swarm.Service{
		ID:      "svc1",
		Version: swarm.Version{Index: 7},
		Spec: swarm.Spec{
			Name:   "web",
			Labels: labels,
			Mode:   swarm.Mode{Replicated: &swarm.Replicated{Replicas: &replicas}},
		},
	}
}

var testDefaults = Defaults{PercentageMin: 25, PercentageMax: 85}

func TestParseService_Defaults(t *testing.T) {
	spec, warnings := ParseService(testService(map[string]string{
		"swarm.autoscale": "true",
	}), testDefaults)

	assert.Empty(t, warnings)
	assert.True(t, spec.Autoscale)
	assert.Equal(t, "svc1", spec.ID)
	assert.Equal(t, "web", spec.Name)
	assert.Equal(t, models.MetricCPU, spec.Metric)
	assert.Equal(t, models.DecreaseModeMedian, spec.DecreaseMode)
	assert.Equal(t, DefaultMinReplicas, spec.MinReplicas)
	assert.Equal(t, DefaultMaxReplicas, spec.MaxReplicas)
	assert.Equal(t, 25.0, spec.PercentageMin)
	assert.Equal(t, 85.0, spec.PercentageMax)
	assert.Equal(t, 3, spec.CurrentReplicas)
	assert.Equal(t, uint64(7), spec.SpecVersion)
	assert.False(t, spec.DisableManualReplicas)
}

func TestParseService_TruthyIsExactlyTrue(t *testing.T) {
	for _, value := range []string{"True", "TRUE", "1", "yes", "", "false"} {
		spec, _ := ParseService(testService(map[string]string{
			"swarm.autoscale": value,
		}), testDefaults)
		assert.False(t, spec.Autoscale, "value %q must not enroll the service", value)
	}
}

func TestParseService_FullConfiguration(t *testing.T) {
	spec, warnings := ParseService(testService(map[string]string{
		"swarm.autoscale":                         "true",
		"swarm.autoscale.min":                     "2",
		"swarm.autoscale.max":                     "8",
		"swarm.autoscale.percentage-min":          "10",
		"swarm.autoscale.percentage-max":          "70",
		"swarm.autoscale.decrease-mode":           "MAX",
		"swarm.autoscale.metric":                  "memory",
		"swarm.autoscale.disable-manual-replicas": "true",
	}), testDefaults)

	assert.Empty(t, warnings)
	assert.Equal(t, 2, spec.MinReplicas)
	assert.Equal(t, 8, spec.MaxReplicas)
	assert.Equal(t, 10.0, spec.PercentageMin)
	assert.Equal(t, 70.0, spec.PercentageMax)
	assert.Equal(t, models.DecreaseModeMax, spec.DecreaseMode)
	assert.Equal(t, models.MetricMemory, spec.Metric)
	assert.True(t, spec.DisableManualReplicas)
}

func TestParseService_MalformedValuesFallBack(t *testing.T) {
	tests := []struct {
		name   string
		labels map[string]string
		check  func(t *testing.T, spec models.ServiceSpec)
	}{
		{
			name:   "non-numeric min",
			labels: map[string]string{"swarm.autoscale.min": "two"},
			check: func(t *testing.T, spec models.ServiceSpec) {
				assert.Equal(t, DefaultMinReplicas, spec.MinReplicas)
			},
		},
		{
			name:   "negative max",
			labels: map[string]string{"swarm.autoscale.max": "-1"},
			check: func(t *testing.T, spec models.ServiceSpec) {
				assert.Equal(t, DefaultMaxReplicas, spec.MaxReplicas)
			},
		},
		{
			name:   "bad percentage",
			labels: map[string]string{"swarm.autoscale.percentage-max": "high"},
			check: func(t *testing.T, spec models.ServiceSpec) {
				assert.Equal(t, 85.0, spec.PercentageMax)
			},
		},
		{
			name:   "unknown decrease mode",
			labels: map[string]string{"swarm.autoscale.decrease-mode": "AVG"},
			check: func(t *testing.T, spec models.ServiceSpec) {
				assert.Equal(t, models.DecreaseModeMedian, spec.DecreaseMode)
			},
		},
		{
			name:   "unknown metric",
			labels: map[string]string{"swarm.autoscale.metric": "disk"},
			check: func(t *testing.T, spec models.ServiceSpec) {
				assert.Equal(t, models.MetricCPU, spec.Metric)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels := map[string]string{"swarm.autoscale": "true"}
			for k, v := range tt.labels {
				labels[k] = v
			}

			spec, warnings := ParseService(testService(labels), testDefaults)
			assert.NotEmpty(t, warnings)
			tt.check(t, spec)
		})
	}
}

func TestParseService_MinAboveMaxResetsBoth(t *testing.T) {
	spec, warnings := ParseService(testService(map[string]string{
		"swarm.autoscale":     "true",
		"swarm.autoscale.min": "9",
		"swarm.autoscale.max": "2",
	}), testDefaults)

	assert.NotEmpty(t, warnings)
	assert.Equal(t, DefaultMinReplicas, spec.MinReplicas)
	assert.Equal(t, DefaultMaxReplicas, spec.MaxReplicas)
}

func TestParseService_InvalidBandWarned(t *testing.T) {
	spec, warnings := ParseService(testService(map[string]string{
		"swarm.autoscale":                "true",
		"swarm.autoscale.percentage-min": "90",
		"swarm.autoscale.percentage-max": "50",
	}), testDefaults)

	assert.False(t, spec.ThresholdsValid())
	assert.NotEmpty(t, warnings)
}

func TestParseService_ResourceLimits(t *testing.T) {
	service := testService(map[string]string{"swarm.autoscale": "true"})
	service.Spec.TaskTemplate.Resources = &swarm.Resources{
		Limits: &swarm.Limits{NanoCPUs: 500000000, MemoryBytes: 1 << 30},
	}
	service.Spec.TaskTemplate.Placement = &swarm.Placement{MaxReplicas: 2}

	spec, _ := ParseService(service, testDefaults)
	assert.Equal(t, 0.5, spec.CPULimit)
	assert.Equal(t, int64(1<<30), spec.MemoryLimit)
	assert.Equal(t, 2, spec.MaxReplicasPerNode)
}

func TestParseService_GlobalModeWarned(t *testing.T) {
	service := testService(map[string]string{"swarm.autoscale": "true"})
	service.Spec.Mode.Replicated = nil

	spec, warnings := ParseService(service, testDefaults)
	assert.Equal(t, 0, spec.CurrentReplicas)
	assert.NotEmpty(t, warnings)
}
