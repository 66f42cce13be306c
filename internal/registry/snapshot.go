package registry

import (
	"sync/atomic"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/pkg/models"
)

// Cache publishes the current service snapshot. The registry is the
// single writer; readers get whole snapshots through one atomic pointer
// load and can never observe one mid-build.
type Cache struct {
	current atomic.Pointer[models.Snapshot]
}

func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(&models.Snapshot{
		Services: map[string]models.ServiceSpec{},
		BuiltAt:  time.Now(),
	})
	return c
}

func (c *Cache) Snapshot() *models.Snapshot {
	return c.current.Load()
}

func (c *Cache) publish(snapshot *models.Snapshot) {
	c.current.Store(snapshot)
}

// diff compares a candidate service set against the current snapshot.
type diff struct {
	added   []models.ServiceSpec
	removed []models.ServiceSpec
	updated []models.ServiceSpec
}

func (d diff) empty() bool {
	return len(d.added) == 0 && len(d.removed) == 0 && len(d.updated) == 0
}

func diffSnapshots(current *models.Snapshot, candidate map[string]models.ServiceSpec) diff {
	var d diff

	for id, next := range candidate {
		prev, ok := current.Services[id]
		switch {
		case !ok:
			d.added = append(d.added, next)
		case !prev.Equal(next):
			d.updated = append(d.updated, next)
		}
	}

	for id, prev := range current.Services {
		if _, ok := candidate[id]; !ok {
			d.removed = append(d.removed, prev)
		}
	}

	return d
}
