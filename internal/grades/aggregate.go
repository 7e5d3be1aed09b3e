package grades

import (
	"context"
	"fmt"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/scores"
)

// Total is an (earned, possible) point pair summed over a subtree.
type Total struct {
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
}

func (t *Total) add(earned, possible float64) {
	t.Earned += earned
	t.Possible += possible
}

// AggregateScore holds the two running totals kept for every block. All
// sums the weighted score of every scorable leaf in the subtree; Graded
// sums only leaves whose score counts toward the course percent. Structural
// totals and the percent basis diverge whenever a course mixes graded and
// practice problems, so both are carried.
type AggregateScore struct {
	All    Total `json:"all"`
	Graded Total `json:"graded"`
}

// ProblemScore is the per-leaf detail retained alongside the aggregates.
// An unattempted leaf keeps the zero value with Attempted false.
type ProblemScore struct {
	BlockID     course.BlockID `json:"block_id"`
	DisplayName string         `json:"display_name,omitempty"`
	RawEarned   float64        `json:"raw_earned"`
	RawPossible float64        `json:"raw_possible"`
	Weight      *float64       `json:"weight,omitempty"`
	Attempted   bool           `json:"attempted"`
	Graded      bool           `json:"graded"`
	Weighted    WeightedScore  `json:"weighted"`
}

// aggregator computes one learner's totals over one tree. All of its state
// is scoped to the CourseGrade being built and discarded with it; nothing
// is shared across learners.
type aggregator struct {
	tree     *course.Tree
	provider scores.Provider
	learner  string

	memo     map[course.BlockID]AggregateScore
	problems map[course.BlockID]ProblemScore
}

func newAggregator(tree *course.Tree, provider scores.Provider, learner string) *aggregator {
	return &aggregator{
		tree:     tree,
		provider: provider,
		learner:  learner,
		memo:     make(map[course.BlockID]AggregateScore, tree.Len()),
		problems: make(map[course.BlockID]ProblemScore),
	}
}

// scoreFor aggregates the subtree rooted at id, memoizing every block it
// visits. Children are visited in authored order; the sum is commutative
// but the provider call order stays deterministic.
func (a *aggregator) scoreFor(ctx context.Context, id course.BlockID) (AggregateScore, error) {
	if agg, ok := a.memo[id]; ok {
		return agg, nil
	}
	blk, ok := a.tree.Get(id)
	if !ok {
		return AggregateScore{}, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}

	var agg AggregateScore
	switch blk.Category.Kind() {
	case course.KindScorableLeaf:
		ps, err := a.leafScore(ctx, blk)
		if err != nil {
			return AggregateScore{}, err
		}
		agg.All.add(ps.Weighted.Earned, ps.Weighted.Possible)
		if ps.Graded {
			agg.Graded.add(ps.Weighted.Earned, ps.Weighted.Possible)
		}
	case course.KindContainer:
		for _, child := range blk.Children {
			sub, err := a.scoreFor(ctx, child)
			if err != nil {
				return AggregateScore{}, err
			}
			agg.All.add(sub.All.Earned, sub.All.Possible)
			agg.Graded.add(sub.Graded.Earned, sub.Graded.Possible)
		}
	case course.KindUnscorableLeaf:
		// counts as (0, 0)
	}

	a.memo[id] = agg
	return agg, nil
}

// leafScore fetches one leaf's recorded score and derives its weighted
// form. An absent row counts as (0, 0) and never as graded, whatever the
// block's authored graded flag says.
func (a *aggregator) leafScore(ctx context.Context, blk course.Block) (ProblemScore, error) {
	ps := ProblemScore{BlockID: blk.ID, DisplayName: blk.DisplayName}
	raw, ok, err := a.provider.LeafScore(ctx, a.learner, blk.ID)
	if err != nil {
		return ProblemScore{}, fmt.Errorf("leaf %s: %w", blk.ID, err)
	}
	if ok {
		ps.Attempted = true
		ps.RawEarned = raw.RawEarned
		ps.RawPossible = raw.RawPossible
		ps.Weight = raw.Weight
		ps.Weighted = Weighted(raw.RawEarned, raw.RawPossible, raw.Weight)
		ps.Graded = raw.Graded && ps.Weighted.Graded
	}
	a.problems[blk.ID] = ps
	return ps, nil
}
