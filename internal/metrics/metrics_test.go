package metrics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	IncCollection("web")
	IncCollection("web")
	IncCollectionError("web")
	IncDecision("up")
	IncAction("applied")
	IncSkipped("no_samples")
	SetSnapshotVersion(7)
	SetServiceCount(2)
	SetDegraded(true)

	out := Render()

	assert.Contains(t, out, `autoscaler_collections_total{service="web"} 2`)
	assert.Contains(t, out, `autoscaler_collection_errors_total{service="web"} 1`)
	assert.Contains(t, out, `autoscaler_decisions_total{direction="up"} 1`)
	assert.Contains(t, out, `autoscaler_actions_total{status="applied"} 1`)
	assert.Contains(t, out, `autoscaler_skipped_evaluations_total{reason="no_samples"} 1`)
	assert.Contains(t, out, "autoscaler_snapshot_version 7")
	assert.Contains(t, out, "autoscaler_services 2")
	assert.Contains(t, out, "autoscaler_degraded 1")
}

func TestRender_SortsLabels(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	IncCollection("zeta")
	IncCollection("alpha")

	out := Render()
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "zeta"))
}
