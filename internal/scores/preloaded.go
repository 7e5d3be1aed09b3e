package scores

import (
	"context"
	"sync"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

// BulkLoader fetches all of one learner's recorded scores for one course in
// a single call.
type BulkLoader interface {
	LearnerScores(ctx context.Context, courseID, learnerID string) (map[course.BlockID]LeafScore, error)
}

// Preloaded adapts a BulkLoader into a Provider: the first lookup for a
// learner loads that learner's rows once, later lookups are served from
// memory. Batch runs over SQL stores cost one query per learner instead of
// one per leaf.
type Preloaded struct {
	courseID string
	loader   BulkLoader

	mu     sync.Mutex
	loaded map[string]map[course.BlockID]LeafScore
}

func NewPreloaded(courseID string, loader BulkLoader) *Preloaded {
	return &Preloaded{
		courseID: courseID,
		loader:   loader,
		loaded:   map[string]map[course.BlockID]LeafScore{},
	}
}

func (p *Preloaded) LeafScore(ctx context.Context, learnerID string, blockID course.BlockID) (LeafScore, bool, error) {
	p.mu.Lock()
	rows, ok := p.loaded[learnerID]
	p.mu.Unlock()
	if !ok {
		var err error
		rows, err = p.loader.LearnerScores(ctx, p.courseID, learnerID)
		if err != nil {
			return LeafScore{}, false, err
		}
		p.mu.Lock()
		p.loaded[learnerID] = rows
		p.mu.Unlock()
	}
	s, ok := rows[blockID]
	return s, ok, nil
}
