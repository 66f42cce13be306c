package scaler

import (
	"context"
	"errors"
)

var (
	ErrScalingFailed = errors.New("scaling operation failed")
	ErrNoCapacity    = errors.New("not enough nodes for requested replicas")
)

// Scaler applies a desired replica count to one service, idempotently.
// There are no cross-service transactions; each call stands alone.
type Scaler interface {
	Scale(ctx context.Context, serviceID string, desired int) error
}
