package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Package-level registry of the controller's operational counters,
// rendered in prometheus text format on /metrics.
type registry struct {
	mu sync.RWMutex

	collectionsTotal map[string]int64 // service -> count
	collectionErrors map[string]int64
	decisionsTotal   map[string]int64 // direction -> count
	actionsTotal     map[string]int64 // status -> count
	skippedTotal     map[string]int64 // reason -> count

	snapshotVersion uint64
	serviceCount    int
	degraded        bool
}

var defaultRegistry = &registry{
	collectionsTotal: make(map[string]int64),
	collectionErrors: make(map[string]int64),
	decisionsTotal:   make(map[string]int64),
	actionsTotal:     make(map[string]int64),
	skippedTotal:     make(map[string]int64),
}

func IncCollection(service string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.collectionsTotal[service]++
}

func IncCollectionError(service string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.collectionErrors[service]++
}

func IncDecision(direction string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.decisionsTotal[direction]++
}

func IncAction(status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.actionsTotal[status]++
}

func IncSkipped(reason string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.skippedTotal[reason]++
}

func SetSnapshotVersion(version uint64) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.snapshotVersion = version
}

func SetServiceCount(count int) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.serviceCount = count
}

func SetDegraded(degraded bool) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.degraded = degraded
}

func Reset() {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	defaultRegistry.collectionsTotal = make(map[string]int64)
	defaultRegistry.collectionErrors = make(map[string]int64)
	defaultRegistry.decisionsTotal = make(map[string]int64)
	defaultRegistry.actionsTotal = make(map[string]int64)
	defaultRegistry.skippedTotal = make(map[string]int64)
	defaultRegistry.snapshotVersion = 0
	defaultRegistry.serviceCount = 0
	defaultRegistry.degraded = false
}

// Render produces the plain-text exposition.
func Render() string {
	defaultRegistry.mu.RLock()
	defer defaultRegistry.mu.RUnlock()

	var b strings.Builder

	writeCounter(&b, "autoscaler_collections_total", "service", defaultRegistry.collectionsTotal)
	writeCounter(&b, "autoscaler_collection_errors_total", "service", defaultRegistry.collectionErrors)
	writeCounter(&b, "autoscaler_decisions_total", "direction", defaultRegistry.decisionsTotal)
	writeCounter(&b, "autoscaler_actions_total", "status", defaultRegistry.actionsTotal)
	writeCounter(&b, "autoscaler_skipped_evaluations_total", "reason", defaultRegistry.skippedTotal)

	fmt.Fprintf(&b, "autoscaler_snapshot_version %d\n", defaultRegistry.snapshotVersion)
	fmt.Fprintf(&b, "autoscaler_services %d\n", defaultRegistry.serviceCount)
	degraded := 0
	if defaultRegistry.degraded {
		degraded = 1
	}
	fmt.Fprintf(&b, "autoscaler_degraded %d\n", degraded)

	return b.String()
}

func writeCounter(b *strings.Builder, name, label string, values map[string]int64) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}
