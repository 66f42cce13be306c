package scaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cristianemoyano/swarm-autoscaler/internal/logger"
	"github.com/cristianemoyano/swarm-autoscaler/internal/swarm"
)

// DockerAPI is the slice of the docker client the executor needs.
type DockerAPI interface {
	InspectService(ctx context.Context, serviceID string) (*swarm.Service, error)
	UpdateReplicas(ctx context.Context, service *swarm.Service, replicas int) error
	NodeCount(ctx context.Context) (int, error)
}

const nodeCountTTL = 30 * time.Second

// SwarmScaler executes replica updates against the swarm. It re-reads
// the service immediately before mutating so a concurrent manual change
// shows up as either a no-op or a version conflict, never a blind
// overwrite.
type SwarmScaler struct {
	docker DockerAPI

	mu           sync.Mutex
	nodeCount    int
	nodesFetched time.Time
}

func NewSwarmScaler(docker DockerAPI) *SwarmScaler {
	return &SwarmScaler{docker: docker}
}

func (s *SwarmScaler) Scale(ctx context.Context, serviceID string, desired int) error {
	service, err := s.docker.InspectService(ctx, serviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScalingFailed, err)
	}

	current, ok := service.Replicas()
	if !ok {
		return fmt.Errorf("%w: %v", ErrScalingFailed, swarm.ErrNotReplicated)
	}

	name := service.Spec.Name
	if current == desired {
		logger.WithService(name).Debugf("Replicas already at %d, nothing to do", desired)
		return nil
	}

	if maxPerNode := service.MaxReplicasPerNode(); maxPerNode > 0 {
		nodes, err := s.cachedNodeCount(ctx)
		if err != nil {
			return fmt.Errorf("%w: node count: %v", ErrScalingFailed, err)
		}
		if nodes*maxPerNode < desired {
			return fmt.Errorf("%w: %d nodes x %d max per node < %d", ErrNoCapacity, nodes, maxPerNode, desired)
		}
	}

	logger.WithService(name).Infof("Scaling %d -> %d", current, desired)

	if err := s.docker.UpdateReplicas(ctx, service, desired); err != nil {
		// A version conflict means something else updated the service
		// between our read and write; the next tick re-evaluates from
		// fresh state, so it is reported, not retried.
		return fmt.Errorf("%w: %w", ErrScalingFailed, err)
	}
	return nil
}

func (s *SwarmScaler) cachedNodeCount(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.nodesFetched.IsZero() && time.Since(s.nodesFetched) < nodeCountTTL {
		return s.nodeCount, nil
	}

	count, err := s.docker.NodeCount(ctx)
	if err != nil {
		return 0, err
	}
	s.nodeCount = count
	s.nodesFetched = time.Now()
	return count, nil
}
