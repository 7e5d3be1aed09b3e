package scores

import (
	"context"
	"sync"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

type synchronized struct {
	mu sync.Mutex
	p  Provider
}

// Synchronized serializes calls to a provider that is not safe for
// concurrent use, so batch workers can share one handle.
func Synchronized(p Provider) Provider { return &synchronized{p: p} }

func (s *synchronized) LeafScore(ctx context.Context, learnerID string, blockID course.BlockID) (LeafScore, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.LeafScore(ctx, learnerID, blockID)
}
