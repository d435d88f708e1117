package plans

import (
	"context"
	"sync"
)

type inMemSource struct {
	mu    sync.RWMutex
	plans map[Tier]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given plans.
func NewInMemSource(plans ...Plan) Source {
	cp := make(map[Tier]Plan, len(plans))
	for _, p := range plans {
		cp[p.Tier] = clonePlan(p)
	}
	return &inMemSource{plans: cp}
}

// Load returns a copy of all plans held in memory.
func (s *inMemSource) Load(ctx context.Context) (map[Tier]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp := make(map[Tier]Plan, len(s.plans))
	for tier, p := range s.plans {
		cp[tier] = clonePlan(p)
	}
	return cp, nil
}
