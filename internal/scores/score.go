package scores

import (
	"context"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

// LeafScore is the raw outcome the response system recorded for one learner
// on one scorable block. The core never mutates it. Weight is the authored
// override carried with the row; nil means the problem counts at face value.
type LeafScore struct {
	RawEarned   float64  `json:"raw_earned"`
	RawPossible float64  `json:"raw_possible"`
	Weight      *float64 `json:"weight,omitempty"`
	Graded      bool     `json:"graded"`
}

// Provider resolves recorded scores. ok=false means the learner has not
// attempted the block; that is not an error.
type Provider interface {
	LeafScore(ctx context.Context, learnerID string, blockID course.BlockID) (LeafScore, bool, error)
}
