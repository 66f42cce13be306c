package registry

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/events"
	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/metrics"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// ServiceLister is the slice of the docker client the registry needs.
type ServiceLister interface {
	ListServices(ctx context.Context, label string) ([]swarm.Service, error)
}

type Config struct {
	RefreshInterval time.Duration
	Timeout         time.Duration
	Defaults        Defaults
}

// Registry discovers autoscale-labeled services on a timer and owns the
// published snapshot. A failed discovery keeps serving the last-known
// good snapshot and flags the registry as degraded until the next
// successful refresh.
type Registry struct {
	docker    ServiceLister
	cache     *Cache
	metrics   *MetricsCache
	publisher *events.Publisher
	config    Config

	// mu serializes refreshes: the timer loop and ForceRefresh never
	// build snapshots concurrently.
	mu          sync.Mutex
	degraded    atomic.Bool
	lastRefresh atomic.Int64
	lastTick    atomic.Int64

	// warned dedupes configuration warnings per service until its spec
	// version changes.
	warned map[string]uint64
}

func New(docker ServiceLister, cache *Cache, publisher *events.Publisher, cfg Config) *Registry {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 30 * time.Second
	}
	if cfg.Timeout <= 0 || cfg.Timeout >= cfg.RefreshInterval {
		cfg.Timeout = cfg.RefreshInterval / 2
	}

	return &Registry{
		docker:    docker,
		cache:     cache,
		metrics:   NewMetricsCache(),
		publisher: publisher,
		config:    cfg,
		warned:    make(map[string]uint64),
	}
}

func (r *Registry) Cache() *Cache {
	return r.cache
}

func (r *Registry) Metrics() *MetricsCache {
	return r.metrics
}

// Run drives the refresh timer until the context is cancelled. The
// first refresh happens immediately so the engine has a snapshot to
// work with.
func (r *Registry) Run(ctx context.Context) {
	r.Refresh(ctx)

	ticker := time.NewTicker(r.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}

// Refresh runs one discovery pass. Also the force-refresh entry point
// for the API; safe to call concurrently with the timer.
func (r *Registry) Refresh(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	services, err := r.docker.ListServices(ctx, LabelAutoscale)
	if err != nil {
		r.degraded.Store(true)
		metrics.SetDegraded(true)
		logger.Errorf("Service discovery failed, serving stale snapshot: %v", err)
		return
	}

	candidate := make(map[string]models.ServiceSpec, len(services))
	for i := range services {
		service := &services[i]
		spec, warnings := ParseService(service, r.config.Defaults)

		if r.warned[spec.ID] != spec.SpecVersion {
			for _, warning := range warnings {
				logger.WithService(spec.Name).Warn(warning)
			}
			r.warned[spec.ID] = spec.SpecVersion
		}

		// The label filter matches on key; only a truthy value enrolls
		// the service.
		if !spec.Autoscale {
			continue
		}
		candidate[spec.ID] = spec
	}

	current := r.cache.Snapshot()
	changes := diffSnapshots(current, candidate)

	r.degraded.Store(false)
	r.lastRefresh.Store(time.Now().UnixNano())
	metrics.SetDegraded(false)
	metrics.SetServiceCount(len(candidate))

	if changes.empty() {
		logger.Debugf("Service snapshot unchanged at version %d", current.Version)
		return
	}

	next := &models.Snapshot{
		Version:  current.Version + 1,
		Services: candidate,
		BuiltAt:  time.Now(),
	}
	r.cache.publish(next)
	metrics.SetSnapshotVersion(next.Version)

	for id := range r.warned {
		if _, ok := candidate[id]; !ok {
			delete(r.warned, id)
		}
	}

	logger.Infof("Service snapshot version %d: %d services (+%d -%d ~%d)",
		next.Version, len(candidate), len(changes.added), len(changes.removed), len(changes.updated))

	for _, spec := range changes.added {
		r.publisher.ServiceAdded(spec)
	}
	for _, spec := range changes.removed {
		r.publisher.ServiceRemoved(spec)
	}
	for _, spec := range changes.updated {
		r.publisher.ServiceUpdated(spec)
	}
	r.publisher.ServicesUpdated(next)
}

// RecordSamples stores a tick's samples for API reads. The engine
// announces them on the bus once per evaluation.
func (r *Registry) RecordSamples(spec models.ServiceSpec, samples []models.Sample) {
	r.metrics.Record(spec.ID, spec.Name, spec.Metric, samples)
}

// ClearMetrics drops the cached samples, not the service snapshot.
func (r *Registry) ClearMetrics() {
	r.metrics.Clear()
}

// MarkTick records the completion time of an evaluation tick.
func (r *Registry) MarkTick() {
	r.lastTick.Store(time.Now().UnixNano())
}

type Health struct {
	Degraded        bool      `json:"degraded"`
	LastRefresh     time.Time `json:"last_refresh"`
	LastTick        time.Time `json:"last_tick"`
	SnapshotVersion uint64    `json:"snapshot_version"`
	Services        int       `json:"services"`
}

func (r *Registry) Health() Health {
	snapshot := r.cache.Snapshot()
	return Health{
		Degraded:        r.degraded.Load(),
		LastRefresh:     nanoTime(r.lastRefresh.Load()),
		LastTick:        nanoTime(r.lastTick.Load()),
		SnapshotVersion: snapshot.Version,
		Services:        snapshot.Len(),
	}
}

func nanoTime(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
