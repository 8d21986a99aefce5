package feed

import (
	"fmt"
	"sync/atomic"

	"github.com/alanyoungcy/tradecost/internal/domain"
)

// paramStore publishes immutable Parameters snapshots. Readers load one
// snapshot per cycle; writers swap in a new one.
type paramStore struct {
	p atomic.Pointer[domain.Parameters]
}

func newParamStore(initial domain.Parameters) *paramStore {
	s := &paramStore{}
	s.p.Store(&initial)
	return s
}

func (s *paramStore) Load() domain.Parameters {
	return *s.p.Load()
}

// Update merges u into the current snapshot. Concurrent updates are merged
// in turn, so none is lost.
func (s *paramStore) Update(u domain.ParameterUpdate) (domain.Parameters, error) {
	for {
		cur := s.p.Load()
		next := u.Apply(*cur)
		if err := next.Validate(); err != nil {
			return *cur, fmt.Errorf("feed: set parameters: %w", err)
		}
		if s.p.CompareAndSwap(cur, &next) {
			return next, nil
		}
	}
}
