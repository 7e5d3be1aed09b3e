package grades

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/events"
	"github.com/mind-engage/mindengage-grades/internal/scores"
)

// CourseGrade is one learner's computed grade over one course snapshot.
// It is immutable once built and holds no reference back into the score
// provider, so it can outlive the run that produced it.
type CourseGrade struct {
	learner  string
	courseID string
	root     course.BlockID
	scores   map[course.BlockID]AggregateScore
	problems map[course.BlockID]ProblemScore
	percent  float64
	letter   string
}

func (g *CourseGrade) Learner() string      { return g.learner }
func (g *CourseGrade) CourseID() string     { return g.courseID }
func (g *CourseGrade) Root() course.BlockID { return g.root }

// ScoreForBlock returns the structural (earned, possible) total for one
// block. Asking for a block outside the course structure is a usage error,
// not a zero score.
func (g *CourseGrade) ScoreForBlock(id course.BlockID) (Total, error) {
	agg, ok := g.scores[id]
	if !ok {
		return Total{}, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}
	return agg.All, nil
}

// Aggregate returns both totals for one block.
func (g *CourseGrade) Aggregate(id course.BlockID) (AggregateScore, error) {
	agg, ok := g.scores[id]
	if !ok {
		return AggregateScore{}, fmt.Errorf("%w: %s", ErrUnknownBlock, id)
	}
	return agg, nil
}

// Percent is the ratio of graded earned to graded possible at the course
// root, 0 when nothing graded carries points.
func (g *CourseGrade) Percent() float64 { return g.percent }

// Letter is the policy label matching Percent, or "" when no cutoff is met
// or the course defines no policy.
func (g *CourseGrade) Letter() string { return g.letter }

// Breakdown returns a copy of the per-block aggregates.
func (g *CourseGrade) Breakdown() map[course.BlockID]AggregateScore {
	out := make(map[course.BlockID]AggregateScore, len(g.scores))
	for id, agg := range g.scores {
		out[id] = agg
	}
	return out
}

// ProblemScores returns a copy of the per-leaf detail.
func (g *CourseGrade) ProblemScores() map[course.BlockID]ProblemScore {
	out := make(map[course.BlockID]ProblemScore, len(g.problems))
	for id, ps := range g.problems {
		out[id] = ps
	}
	return out
}

// Factory builds course grades from a tree provider and a score provider.
type Factory struct {
	trees   course.TreeProvider
	scores  scores.Provider
	log     *zap.Logger
	events  *events.Repo
	workers int
}

type Option func(*Factory)

// WithLogger sets the logger used for per-learner failure reporting.
func WithLogger(l *zap.Logger) Option { return func(f *Factory) { f.log = l } }

// WithWorkers sets how many learners a batch run grades concurrently.
// Values below 2 keep runs sequential.
func WithWorkers(n int) Option { return func(f *Factory) { f.workers = n } }

// WithEvents records run lifecycle entries in the event log.
func WithEvents(r *events.Repo) Option { return func(f *Factory) { f.events = r } }

func NewFactory(trees course.TreeProvider, provider scores.Provider, opts ...Option) *Factory {
	f := &Factory{trees: trees, scores: provider, log: zap.NewNop(), workers: 1}
	for _, o := range opts {
		o(f)
	}
	if f.workers < 1 {
		f.workers = 1
	}
	return f
}

// Create computes one learner's grade over an already resolved tree. The
// whole tree is aggregated eagerly so every later block query is a map
// lookup.
func (f *Factory) Create(ctx context.Context, tree *course.Tree, learner string) (*CourseGrade, error) {
	agg := newAggregator(tree, f.scores, learner)
	root, err := agg.scoreFor(ctx, tree.Root())
	if err != nil {
		return nil, err
	}

	percent := 0.0
	if root.Graded.Possible > 0 {
		percent = root.Graded.Earned / root.Graded.Possible
	}
	return &CourseGrade{
		learner:  learner,
		courseID: tree.CourseID(),
		root:     tree.Root(),
		scores:   agg.memo,
		problems: agg.problems,
		percent:  percent,
		letter:   tree.Policy().LetterFor(percent),
	}, nil
}

// CreateForCourse resolves the course structure, then computes the grade.
func (f *Factory) CreateForCourse(ctx context.Context, courseID, learner string) (*CourseGrade, error) {
	tree, err := f.trees.Tree(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", courseID, err)
	}
	return f.Create(ctx, tree, learner)
}
