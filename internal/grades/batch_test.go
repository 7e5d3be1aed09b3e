package grades_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/grades"
	"github.com/mind-engage/mindengage-grades/internal/policy"
	"github.com/mind-engage/mindengage-grades/internal/scores"
)

func drain(t *testing.T, r *grades.BatchRun) []grades.BatchResult {
	t.Helper()
	defer r.Close()
	var out []grades.BatchResult
	for {
		res, ok := r.Next()
		if !ok {
			return out
		}
		out = append(out, res)
	}
}

func TestIterGradesEmptyLearners(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	f := grades.NewFactory(treesOf(tree), &fakeScores{})

	run, err := f.IterGrades(context.Background(), "course-v1:demo", nil)
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	if results := drain(t, run); len(results) != 0 {
		t.Fatalf("empty run yielded %d results", len(results))
	}
}

func TestIterGradesUnknownCourse(t *testing.T) {
	f := grades.NewFactory(treesOf(), &fakeScores{})

	run, err := f.IterGrades(context.Background(), "course-v1:nope", []string{"u1"})
	if !errors.Is(err, grades.ErrCourseNotFound) {
		t.Fatalf("err = %v, want ErrCourseNotFound", err)
	}
	if run != nil {
		t.Fatalf("run must be nil on lookup failure")
	}
}

func TestIterGradesFailureIsolation(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	provider := &fakeScores{
		rows: fixtureScores("u1"),
		fail: map[string]error{
			"u2": errors.New("score service unavailable"),
			"u4": errors.New("row checksum mismatch"),
		},
	}
	f := grades.NewFactory(treesOf(tree), provider)

	learners := []string{"u1", "u2", "u3", "u4", "u5"}
	run, err := f.IterGrades(context.Background(), "course-v1:demo", learners)
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	results := drain(t, run)

	if len(results) != len(learners) {
		t.Fatalf("got %d results, want %d", len(results), len(learners))
	}
	wantFailed := map[string]bool{"u2": true, "u4": true}
	for i, res := range results {
		if res.Learner != learners[i] {
			t.Fatalf("result %d is %q, want %q", i, res.Learner, learners[i])
		}
		if wantFailed[res.Learner] {
			if res.Grade != nil || res.Err == "" {
				t.Fatalf("learner %s: expected failure, got %+v", res.Learner, res)
			}
			continue
		}
		if res.Grade == nil || res.Err != "" {
			t.Fatalf("learner %s: expected success, got err %q", res.Learner, res.Err)
		}
	}
	if !strings.Contains(results[1].Err, "score service unavailable") {
		t.Fatalf("u2 error %q lost the provider message", results[1].Err)
	}

	// the run is exhausted, not restartable
	if _, ok := run.Next(); ok {
		t.Fatalf("Next after exhaustion must report done")
	}
}

// Sequential runs compute inside Next: stopping after one result leaves
// the remaining learners untouched.
func TestIterGradesLazy(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	provider := &fakeScores{rows: fixtureScores("u1")}
	f := grades.NewFactory(treesOf(tree), provider)

	run, err := f.IterGrades(context.Background(), "course-v1:demo", []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	defer run.Close()

	if provider.callCount() != 0 {
		t.Fatalf("provider called before first Next")
	}
	res, ok := run.Next()
	if !ok || res.Learner != "u1" {
		t.Fatalf("first result = %+v ok=%v", res, ok)
	}
	if provider.callCount() != 5 {
		t.Fatalf("provider calls = %d, want 5 (one learner's leaves)", provider.callCount())
	}

	run.Close()
	if _, ok := run.Next(); ok {
		t.Fatalf("Next after Close must report done")
	}
	if provider.callCount() != 5 {
		t.Fatalf("work continued after Close: %d calls", provider.callCount())
	}
}

func TestIterGradesWorkers(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	rows := map[string]map[course.BlockID]scores.LeafScore{}
	learners := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7", "u8"}
	for _, l := range learners {
		rows[l] = fixtureScores(l)[l]
	}
	provider := &fakeScores{
		rows: rows,
		fail: map[string]error{
			"u3": errors.New("score service unavailable"),
			"u6": errors.New("score service unavailable"),
		},
	}
	f := grades.NewFactory(treesOf(tree), provider, grades.WithWorkers(4))

	run, err := f.IterGrades(context.Background(), "course-v1:demo", learners)
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	results := drain(t, run)

	if len(results) != len(learners) {
		t.Fatalf("got %d results, want %d", len(results), len(learners))
	}
	for i, res := range results {
		if res.Learner != learners[i] {
			t.Fatalf("result %d is %q, want %q (input order must hold)", i, res.Learner, learners[i])
		}
		failed := res.Learner == "u3" || res.Learner == "u6"
		if failed && (res.Grade != nil || res.Err == "") {
			t.Fatalf("learner %s: expected failure, got %+v", res.Learner, res)
		}
		if !failed && (res.Grade == nil || res.Err != "") {
			t.Fatalf("learner %s: expected success, got err %q", res.Learner, res.Err)
		}
	}
}

func TestIterGradesPanicRecovery(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	provider := &fakeScores{
		rows:   fixtureScores("u1"),
		panics: map[string]bool{"u2": true},
	}
	f := grades.NewFactory(treesOf(tree), provider)

	run, err := f.IterGrades(context.Background(), "course-v1:demo", []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	results := drain(t, run)

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	if results[1].Grade != nil || !strings.Contains(results[1].Err, "panicked") {
		t.Fatalf("u2 result = %+v, want recovered panic", results[1])
	}
	if results[0].Grade == nil || results[2].Grade == nil {
		t.Fatalf("panic leaked into neighbouring learners")
	}
}

func TestBatchRunCloseStopsConcurrentWork(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	provider := &slowScores{inner: &fakeScores{rows: fixtureScores("u1")}, delay: 2 * time.Millisecond}
	f := grades.NewFactory(treesOf(tree), provider, grades.WithWorkers(2))

	run, err := f.IterGrades(context.Background(), "course-v1:demo", []string{"u1", "u2", "u3", "u4", "u5", "u6"})
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	if _, ok := run.Next(); !ok {
		t.Fatalf("first Next failed")
	}
	run.Close()
	if _, ok := run.Next(); ok {
		t.Fatalf("Next after Close must report done")
	}
}

func TestIterGradesCancelledContext(t *testing.T) {
	tree := fixtureTree(t, policy.Policy{})
	f := grades.NewFactory(treesOf(tree), &fakeScores{rows: fixtureScores("u1")})

	ctx, cancel := context.WithCancel(context.Background())
	run, err := f.IterGrades(ctx, "course-v1:demo", []string{"u1", "u2"})
	if err != nil {
		t.Fatalf("IterGrades: %v", err)
	}
	defer run.Close()

	if _, ok := run.Next(); !ok {
		t.Fatalf("first Next failed")
	}
	cancel()
	if _, ok := run.Next(); ok {
		t.Fatalf("Next after context cancel must report done")
	}
}

type slowScores struct {
	inner *fakeScores
	delay time.Duration
}

func (s *slowScores) LeafScore(ctx context.Context, learner string, block course.BlockID) (scores.LeafScore, bool, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return scores.LeafScore{}, false, ctx.Err()
	}
	return s.inner.LeafScore(ctx, learner, block)
}
