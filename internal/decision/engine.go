package decision

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/collector"
	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/metrics"
	"github.com/cristianemoyano/swarm-autoscaler/internal/registry"
	"github.com/cristianemoyano/swarm-autoscaler/internal/scaler"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// reasonManualOverride is the audit-trail reason for bound corrections
// when manual replica changes are disallowed.
const reasonManualOverride = "manual override correction"

// ContainerLister resolves the running replicas of a service.
type ContainerLister interface {
	RunningContainers(ctx context.Context, serviceID string) ([]string, error)
}

type Config struct {
	// DryRun logs and records every decision without touching the swarm.
	DryRun bool

	// Concurrency bounds how many services are evaluated in parallel.
	Concurrency int

	// ServiceTimeout caps one service's collect-decide-act cycle.
	ServiceTimeout time.Duration
}

// Engine evaluates every enrolled service once per tick and moves each
// out-of-band service by exactly one replica. Single-step moves keep the
// loop stable: the next tick observes the effect before moving again.
type Engine struct {
	registry  *registry.Registry
	docker    ContainerLister
	collector collector.Collector
	scaler    scaler.Scaler
	publisher *events.Publisher
	config    Config
	guard     *Guard
}

func NewEngine(reg *registry.Registry, docker ContainerLister, col collector.Collector, sc scaler.Scaler, publisher *events.Publisher, cfg Config) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ServiceTimeout <= 0 {
		cfg.ServiceTimeout = 30 * time.Second
	}

	return &Engine{
		registry:  reg,
		docker:    docker,
		collector: col,
		scaler:    sc,
		publisher: publisher,
		config:    cfg,
		guard:     NewGuard(),
	}
}

// Tick evaluates the current snapshot. It returns when every service
// has been evaluated or skipped, so the caller can serialize ticks.
func (e *Engine) Tick(ctx context.Context) {
	snapshot := e.registry.Cache().Snapshot()
	if snapshot.Len() == 0 {
		logger.Debug("No autoscale services enrolled, skipping tick")
		e.registry.MarkTick()
		return
	}

	logger.Debugf("Evaluating %d services at snapshot version %d", snapshot.Len(), snapshot.Version)

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for _, spec := range snapshot.Services {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(spec models.ServiceSpec) {
			defer wg.Done()
			defer func() { <-sem }()
			e.Evaluate(ctx, spec)
		}(spec)
	}

	wg.Wait()
	e.registry.MarkTick()
}

// Evaluate runs one service through collect, decide and act. Concurrent
// calls for the same service collapse to one; the loser is skipped.
func (e *Engine) Evaluate(ctx context.Context, spec models.ServiceSpec) {
	if !e.guard.TryAcquire(spec.ID) {
		logger.WithService(spec.Name).Debug("Evaluation already in flight, skipping")
		metrics.IncSkipped("in_flight")
		return
	}
	defer e.guard.Release(spec.ID)

	ctx, cancel := context.WithTimeout(ctx, e.config.ServiceTimeout)
	defer cancel()

	if !spec.ThresholdsValid() {
		logger.WithService(spec.Name).Debug("Invalid threshold band, skipping")
		metrics.IncSkipped("invalid_thresholds")
		return
	}

	samples, err := e.collect(ctx, spec)
	if err != nil {
		logger.WithService(spec.Name).Errorf("Metric collection failed: %v", err)
		metrics.IncCollectionError(spec.Name)
		return
	}
	metrics.IncCollection(spec.Name)
	e.registry.RecordSamples(spec, samples)

	if len(samples) == 0 {
		logger.WithService(spec.Name).Warn("No replicas reported metrics, holding replica count")
		metrics.IncSkipped("no_samples")
		return
	}
	e.publisher.MetricsUpdated(spec.ID, spec.Name, samples)

	decision := e.decide(spec, models.SampleValues(samples))
	if decision == nil {
		return
	}

	e.act(ctx, spec, decision)
}

func (e *Engine) collect(ctx context.Context, spec models.ServiceSpec) ([]models.Sample, error) {
	containers, err := e.docker.RunningContainers(ctx, spec.ID)
	if err != nil {
		return nil, err
	}

	target := collector.Target{
		ServiceID:    spec.ID,
		ServiceName:  spec.Name,
		ContainerIDs: containers,
		Metric:       spec.Metric,
		CPULimit:     spec.CPULimit,
		MemoryLimit:  spec.MemoryLimit,
	}
	return e.collector.Collect(ctx, target)
}

// decide maps aggregated utilization onto a single-step replica change,
// or nil when the service should hold. Increase always keys off the
// mean; decrease keys off the configured decrease aggregation so one
// hot replica can veto a scale-down under MAX.
func (e *Engine) decide(spec models.ServiceSpec, values []float64) *models.ScalingDecision {
	current := spec.CurrentReplicas
	mean := Mean(values)

	if mean > spec.PercentageMax {
		if current >= spec.MaxReplicas {
			logger.WithService(spec.Name).Warnf("%s at %.2f%% above %.2f%% but already at maximum %d replicas",
				spec.Metric, mean, spec.PercentageMax, spec.MaxReplicas)
			metrics.IncSkipped("at_maximum")
			return nil
		}
		return e.newDecision(spec, mean, current, current+1,
			fmt.Sprintf("mean %s %.2f%% > %.2f%%", spec.Metric, mean, spec.PercentageMax))
	}

	decrease := Median(values)
	if spec.DecreaseMode == models.DecreaseModeMax {
		decrease = Max(values)
	}

	if decrease < spec.PercentageMin {
		if current <= spec.MinReplicas {
			logger.WithService(spec.Name).Debugf("%s at %.2f%% below %.2f%% but already at minimum %d replicas",
				spec.Metric, decrease, spec.PercentageMin, spec.MinReplicas)
			metrics.IncSkipped("at_minimum")
			return nil
		}
		return e.newDecision(spec, decrease, current, current-1,
			fmt.Sprintf("%s %s %.2f%% < %.2f%%", spec.DecreaseMode, spec.Metric, decrease, spec.PercentageMin))
	}

	// Utilization is inside the band. When manual replica changes are
	// disallowed, drift outside [min, max] is corrected one step per
	// tick rather than jumped back in one move.
	if spec.DisableManualReplicas && !spec.WithinBounds(current) {
		if current < spec.MinReplicas {
			logger.WithService(spec.Name).Warnf("Replicas %d below minimum %d, correcting", current, spec.MinReplicas)
			return e.newDecision(spec, mean, current, current+1, reasonManualOverride)
		}
		logger.WithService(spec.Name).Warnf("Replicas %d above maximum %d, correcting", current, spec.MaxReplicas)
		return e.newDecision(spec, mean, current, current-1, reasonManualOverride)
	}

	logger.WithService(spec.Name).Debugf("%s mean %.2f%% within [%.2f%%, %.2f%%], holding %d replicas",
		spec.Metric, mean, spec.PercentageMin, spec.PercentageMax, current)
	return nil
}

func (e *Engine) newDecision(spec models.ServiceSpec, aggregate float64, from, to int, reason string) *models.ScalingDecision {
	return &models.ScalingDecision{
		ServiceID:    spec.ID,
		ServiceName:  spec.Name,
		Metric:       spec.Metric,
		Aggregate:    aggregate,
		FromReplicas: from,
		ToReplicas:   to,
		Reason:       reason,
		DryRun:       e.config.DryRun,
		Timestamp:    time.Now(),
	}
}

// act applies the decision and records its outcome. A failure is an
// event too: the audit trail shows what the engine wanted and why it
// did not happen.
func (e *Engine) act(ctx context.Context, spec models.ServiceSpec, decision *models.ScalingDecision) {
	metrics.IncDecision(string(decision.Direction()))

	status := models.ScalingEventApplied
	var actionErr error

	if e.config.DryRun {
		status = models.ScalingEventDryRun
		logger.WithService(spec.Name).Infof("[dry-run] Would scale %d -> %d: %s",
			decision.FromReplicas, decision.ToReplicas, decision.Reason)
	} else if err := e.scaler.Scale(ctx, spec.ID, decision.ToReplicas); err != nil {
		status = models.ScalingEventFailed
		actionErr = err
		logger.WithService(spec.Name).Errorf("Scaling %d -> %d failed: %v",
			decision.FromReplicas, decision.ToReplicas, err)
	} else {
		logger.WithService(spec.Name).Infof("Scaled %d -> %d: %s",
			decision.FromReplicas, decision.ToReplicas, decision.Reason)
	}
	metrics.IncAction(string(status))

	e.publisher.ScalingDecision(models.NewScalingEvent(decision, status, actionErr))
}
