package decision

import "sync"

// Guard ensures at most one evaluation per service is in flight. A tick
// that overruns into the next one skips the still-busy services instead
// of stacking scale actions on them.
type Guard struct {
	mu   sync.Mutex
	busy map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{busy: make(map[string]struct{})}
}

func (g *Guard) TryAcquire(serviceID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.busy[serviceID]; held {
		return false
	}
	g.busy[serviceID] = struct{}{}
	return true
}

func (g *Guard) Release(serviceID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.busy, serviceID)
}
