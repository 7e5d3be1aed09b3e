package grades

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/events"
	"github.com/mind-engage/mindengage-grades/internal/metrics"
	"github.com/mind-engage/mindengage-grades/internal/tracing"
)

// BatchResult is one learner's outcome in a batch run. Exactly one of
// Grade and Err is set; a failed learner never hides the others.
type BatchResult struct {
	Learner string
	Grade   *CourseGrade
	Err     string
}

// BatchRun yields one BatchResult per requested learner, in input order,
// pulled lazily through Next. A run is single-consumer and not restartable;
// grading the same learners again means starting a new run, which re-reads
// the score provider.
type BatchRun struct {
	f       *Factory
	tree    *course.Tree
	ctx     context.Context
	cancel  context.CancelFunc
	runID   string
	started time.Time
	span    trace.Span

	learners []string
	emitted  int

	// concurrent mode only
	results chan indexedResult
	pending map[int]BatchResult

	closed   bool
	finished bool
}

type indexedResult struct {
	i   int
	res BatchResult
}

// IterGrades resolves the course once, eagerly, then returns a lazy run
// over the learners. An unknown course id fails here, before any learner
// work starts. An empty learner slice is a valid run that yields nothing.
func (f *Factory) IterGrades(ctx context.Context, courseID string, learners []string) (*BatchRun, error) {
	tree, err := f.trees.Tree(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("course %s: %w", courseID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	runCtx, span := tracing.Tracer.Start(runCtx, "grades.batch_run",
		trace.WithAttributes(
			attribute.String("course.id", courseID),
			attribute.Int("learners.requested", len(learners)),
		))
	r := &BatchRun{
		f:        f,
		tree:     tree,
		ctx:      runCtx,
		cancel:   cancel,
		runID:    uuid.NewString(),
		started:  time.Now(),
		span:     span,
		learners: append([]string(nil), learners...),
	}
	if f.events != nil {
		payload := map[string]any{
			"course_id": courseID,
			"learners":  len(r.learners),
			"workers":   f.workers,
		}
		if err := f.events.AppendJSON(ctx, events.TypeBatchRunStarted, r.runID, payload); err != nil {
			f.log.Warn("event append failed", zap.String("run_id", r.runID), zap.Error(err))
		}
	}
	if f.workers > 1 && len(r.learners) > 0 {
		r.start()
	}
	return r, nil
}

// RunID identifies the run in logs and the event log.
func (r *BatchRun) RunID() string { return r.runID }

// Len is the number of learners the run was asked to grade.
func (r *BatchRun) Len() int { return len(r.learners) }

// Next yields the next learner's result. It returns false once every
// learner has been reported, or after Close, or once the run's context is
// cancelled. In sequential runs the learner's grade is computed inside
// this call; nothing is computed for learners the consumer never asks for.
func (r *BatchRun) Next() (BatchResult, bool) {
	if r.closed {
		return BatchResult{}, false
	}
	if r.emitted >= len(r.learners) {
		r.finish()
		return BatchResult{}, false
	}
	if r.results != nil {
		return r.nextConcurrent()
	}
	return r.nextSequential()
}

func (r *BatchRun) nextSequential() (BatchResult, bool) {
	if r.ctx.Err() != nil {
		return BatchResult{}, false
	}
	res := r.f.compute(r.ctx, r.tree, r.learners[r.emitted], r.runID)
	r.emitted++
	if r.emitted == len(r.learners) {
		r.finish()
	}
	return res, true
}

// nextConcurrent reorders worker output back into input order, buffering
// results that arrive early. The buffer stays bounded by the worker count.
func (r *BatchRun) nextConcurrent() (BatchResult, bool) {
	for {
		if res, ok := r.pending[r.emitted]; ok {
			delete(r.pending, r.emitted)
			r.emitted++
			if r.emitted == len(r.learners) {
				r.finish()
			}
			return res, true
		}
		ir, ok := <-r.results
		if !ok {
			return BatchResult{}, false
		}
		r.pending[ir.i] = ir.res
	}
}

// start launches the worker pool for a concurrent run. A dispatcher feeds
// the pool so that at most workers computations run ahead of the consumer.
func (r *BatchRun) start() {
	r.results = make(chan indexedResult, r.f.workers)
	r.pending = make(map[int]BatchResult, r.f.workers)

	g, gctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.f.workers)
	go func() {
		defer close(r.results)
		for i, learner := range r.learners {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res := r.f.compute(gctx, r.tree, learner, r.runID)
				select {
				case r.results <- indexedResult{i: i, res: res}:
				case <-gctx.Done():
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Close stops all in-flight work and records the run as finished. It is
// safe to call more than once. Concurrent runs must be closed even when
// fully consumed, or their workers linger until the parent context ends.
func (r *BatchRun) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.cancel()
	r.finish()
}

func (r *BatchRun) finish() {
	if r.finished {
		return
	}
	r.finished = true
	metrics.BatchRunDuration.Observe(time.Since(r.started).Seconds())
	r.span.SetAttributes(attribute.Int("learners.emitted", r.emitted))
	r.span.End()
	if r.f.events != nil {
		payload := map[string]any{
			"course_id": r.tree.CourseID(),
			"learners":  len(r.learners),
			"emitted":   r.emitted,
		}
		if err := r.f.events.AppendJSON(context.Background(), events.TypeBatchRunFinished, r.runID, payload); err != nil {
			r.f.log.Warn("event append failed", zap.String("run_id", r.runID), zap.Error(err))
		}
	}
}

// compute grades one learner and folds any failure into the result row.
func (f *Factory) compute(ctx context.Context, tree *course.Tree, learner, runID string) BatchResult {
	res := BatchResult{Learner: learner}
	grade, err := f.createSafe(ctx, tree, learner)
	if err != nil {
		res.Err = err.Error()
		f.log.Warn("grade computation failed",
			zap.String("run_id", runID),
			zap.String("course_id", tree.CourseID()),
			zap.String("learner_id", learner),
			zap.Error(err))
		metrics.BatchLearners.WithLabelValues("failed").Inc()
		return res
	}
	res.Grade = grade
	metrics.BatchLearners.WithLabelValues("graded").Inc()
	return res
}

// createSafe converts a panic inside one learner's computation into an
// error so the rest of the run keeps going.
func (f *Factory) createSafe(ctx context.Context, tree *course.Tree, learner string) (grade *CourseGrade, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			grade = nil
			err = fmt.Errorf("grade computation panicked: %v", rec)
		}
	}()
	return f.Create(ctx, tree, learner)
}
