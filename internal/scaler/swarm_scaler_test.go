package scaler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
)

type fakeDocker struct {
	mu sync.Mutex

	service    *swarm.Service
	inspectErr error
	updateErr  error
	nodes      int
	nodeErr    error

	updates    []int
	nodeCalls  int
}

func (f *fakeDocker) InspectService(context.Context, string) (*swarm.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.service, f.inspectErr
}

func (f *fakeDocker) UpdateReplicas(_ context.Context, _ *swarm.Service, replicas int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, replicas)
	return f.updateErr
}

func (f *fakeDocker) NodeCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nodeCalls++
	return f.nodes, f.nodeErr
}

func replicated(replicas uint64, maxPerNode int) *swarm.Service {
	service := &swarm.Service{
		ID:      "svc1",
		Version: swarm.Version{Index: 1},
		Spec: swarm.Spec{
			Name: "web",
			Mode: swarm.Mode{Replicated: &swarm.Replicated{Replicas: &replicas}},
		},
	}
	if maxPerNode > 0 {
		service.Spec.TaskTemplate.Placement = &swarm.Placement{MaxReplicas: maxPerNode}
	}
	service.RawSpec, _ = json.Marshal(service.Spec)
	return service
}

func TestSwarmScaler_Scales(t *testing.T) {
	docker := &fakeDocker{service: replicated(3, 0)}
	s := NewSwarmScaler(docker)

	require.NoError(t, s.Scale(context.Background(), "svc1", 4))
	assert.Equal(t, []int{4}, docker.updates)
}

func TestSwarmScaler_NoOpWhenAlreadyAtDesired(t *testing.T) {
	docker := &fakeDocker{service: replicated(4, 0)}
	s := NewSwarmScaler(docker)

	require.NoError(t, s.Scale(context.Background(), "svc1", 4))
	assert.Empty(t, docker.updates)
}

func TestSwarmScaler_GlobalModeFails(t *testing.T) {
	service := replicated(3, 0)
	service.Spec.Mode.Replicated = nil

	docker := &fakeDocker{service: service}
	s := NewSwarmScaler(docker)

	err := s.Scale(context.Background(), "svc1", 4)
	assert.ErrorIs(t, err, ErrScalingFailed)
	assert.Empty(t, docker.updates)
}

func TestSwarmScaler_CapacityCheck(t *testing.T) {
	// 2 nodes x 2 per node caps the service at 4 replicas.
	docker := &fakeDocker{service: replicated(4, 2), nodes: 2}
	s := NewSwarmScaler(docker)

	err := s.Scale(context.Background(), "svc1", 5)
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.Empty(t, docker.updates)
}

func TestSwarmScaler_CapacityAllowsWithinBounds(t *testing.T) {
	docker := &fakeDocker{service: replicated(2, 2), nodes: 2}
	s := NewSwarmScaler(docker)

	require.NoError(t, s.Scale(context.Background(), "svc1", 3))
	assert.Equal(t, []int{3}, docker.updates)
}

func TestSwarmScaler_NodeCountCached(t *testing.T) {
	docker := &fakeDocker{service: replicated(2, 2), nodes: 2}
	s := NewSwarmScaler(docker)

	require.NoError(t, s.Scale(context.Background(), "svc1", 3))
	docker.service = replicated(3, 2)
	require.NoError(t, s.Scale(context.Background(), "svc1", 4))

	assert.Equal(t, 1, docker.nodeCalls)
}

func TestSwarmScaler_UpdateConflictSurfaces(t *testing.T) {
	docker := &fakeDocker{
		service:   replicated(3, 0),
		updateErr: fmt.Errorf("%w: out of sequence", swarm.ErrUpdateConflict),
	}
	s := NewSwarmScaler(docker)

	err := s.Scale(context.Background(), "svc1", 4)
	assert.ErrorIs(t, err, ErrScalingFailed)
	assert.ErrorIs(t, err, swarm.ErrUpdateConflict)
}

func TestSwarmScaler_InspectErrorSurfaces(t *testing.T) {
	docker := &fakeDocker{inspectErr: fmt.Errorf("daemon down")}
	s := NewSwarmScaler(docker)

	err := s.Scale(context.Background(), "svc1", 4)
	assert.ErrorIs(t, err, ErrScalingFailed)
}
