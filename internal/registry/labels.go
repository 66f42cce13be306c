package registry

import (
	"fmt"
	"strconv"

	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// Service labels, set on the swarm service object.
const (
	LabelAutoscale             = "swarm.autoscale"
	LabelMinReplicas           = "swarm.autoscale.min"
	LabelMaxReplicas           = "swarm.autoscale.max"
	LabelPercentageMin         = "swarm.autoscale.percentage-min"
	LabelPercentageMax         = "swarm.autoscale.percentage-max"
	LabelDecreaseMode          = "swarm.autoscale.decrease-mode"
	LabelMetric                = "swarm.autoscale.metric"
	LabelDisableManualReplicas = "swarm.autoscale.disable-manual-replicas"
)

const (
	DefaultMinReplicas = 1
	DefaultMaxReplicas = 10
)

// Defaults carries the globally configured threshold band, applied when
// a service does not override it.
type Defaults struct {
	PercentageMin float64
	PercentageMax float64
}

// ParseService turns a swarm service's labels into a typed ServiceSpec.
// Malformed values fall back to defaults and come back as warnings;
// parsing never fails.
func ParseService(service *swarm.Service, defaults Defaults) (models.ServiceSpec, []string) {
	var warnings []string
	labels := service.Spec.Labels

	spec := models.ServiceSpec{
		ID:                 service.ID,
		Name:               service.Spec.Name,
		Metric:             models.MetricCPU,
		DecreaseMode:       models.DecreaseModeMedian,
		MinReplicas:        DefaultMinReplicas,
		MaxReplicas:        DefaultMaxReplicas,
		PercentageMin:      defaults.PercentageMin,
		PercentageMax:      defaults.PercentageMax,
		CPULimit:           service.CPULimit(),
		MemoryLimit:        service.MemoryLimit(),
		MaxReplicasPerNode: service.MaxReplicasPerNode(),
		SpecVersion:        service.Version.Index,
		UpdatedAt:          service.UpdatedAt,
	}

	// Anything other than exactly "true" is false, including absence.
	spec.Autoscale = labels[LabelAutoscale] == "true"
	spec.DisableManualReplicas = labels[LabelDisableManualReplicas] == "true"

	if replicas, ok := service.Replicas(); ok {
		spec.CurrentReplicas = replicas
	} else {
		warnings = append(warnings, fmt.Sprintf("service %s is not in replicated mode and cannot be scaled", spec.Name))
	}

	spec.MinReplicas = parseIntLabel(labels, LabelMinReplicas, DefaultMinReplicas, &warnings)
	spec.MaxReplicas = parseIntLabel(labels, LabelMaxReplicas, DefaultMaxReplicas, &warnings)

	spec.PercentageMin = parseFloatLabel(labels, LabelPercentageMin, defaults.PercentageMin, &warnings)
	spec.PercentageMax = parseFloatLabel(labels, LabelPercentageMax, defaults.PercentageMax, &warnings)

	if raw, ok := labels[LabelDecreaseMode]; ok {
		if mode, valid := models.ParseDecreaseMode(raw); valid {
			spec.DecreaseMode = mode
		} else {
			warnings = append(warnings, fmt.Sprintf("label %s=%q is not MEDIAN or MAX, using MEDIAN", LabelDecreaseMode, raw))
		}
	}

	if raw, ok := labels[LabelMetric]; ok {
		if metric, valid := models.ParseMetric(raw); valid {
			spec.Metric = metric
		} else {
			warnings = append(warnings, fmt.Sprintf("label %s=%q is not cpu or memory, using cpu", LabelMetric, raw))
		}
	}

	if spec.MinReplicas > spec.MaxReplicas {
		warnings = append(warnings, fmt.Sprintf("min replicas %d exceeds max replicas %d, using defaults",
			spec.MinReplicas, spec.MaxReplicas))
		spec.MinReplicas = DefaultMinReplicas
		spec.MaxReplicas = DefaultMaxReplicas
	}

	if !spec.ThresholdsValid() {
		warnings = append(warnings, fmt.Sprintf("percentage-min %g is not below percentage-max %g, service excluded from evaluation",
			spec.PercentageMin, spec.PercentageMax))
	}

	return spec, warnings
}

func parseIntLabel(labels map[string]string, key string, fallback int, warnings *[]string) int {
	raw, ok := labels[key]
	if !ok || raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		*warnings = append(*warnings, fmt.Sprintf("label %s=%q is not a non-negative integer, using %d", key, raw, fallback))
		return fallback
	}
	return value
}

func parseFloatLabel(labels map[string]string, key string, fallback float64, warnings *[]string) float64 {
	raw, ok := labels[key]
	if !ok || raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value < 0 {
		*warnings = append(*warnings, fmt.Sprintf("label %s=%q is not a non-negative number, using %g", key, raw, fallback))
		return fallback
	}
	return value
}
