package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	api "github.com/mind-engage/mindengage-grades/internal/api/http"
	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/grades"
	"github.com/mind-engage/mindengage-grades/internal/scores"
)

const demoSnapshot = `{
  "course_id": "course-v1:demo",
  "root": "root",
  "blocks": [
    {"id": "root", "category": "course", "children": ["ch1"]},
    {"id": "ch1", "category": "chapter", "children": ["p1", "p2", "note"]},
    {"id": "p1", "category": "problem", "graded": true, "weight": 10},
    {"id": "p2", "category": "problem", "graded": true},
    {"id": "note", "category": "html"}
  ],
  "grading_policy": {"cutoffs": [{"label": "Pass", "min": 0.5}]}
}`

func seedCourses(t *testing.T) course.Store {
	t.Helper()
	store := course.NewInMemoryStore()
	snap, err := course.DecodeSnapshot(strings.NewReader(demoSnapshot))
	if err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if err := store.Put(context.Background(), snap); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	return store
}

// failingScores wraps a memory store and fails designated learners.
type failingScores struct {
	inner *scores.MemoryStore
	fail  map[string]error
}

func (f *failingScores) LeafScore(ctx context.Context, learner string, block course.BlockID) (scores.LeafScore, bool, error) {
	if err := f.fail[learner]; err != nil {
		return scores.LeafScore{}, false, err
	}
	return f.inner.LeafScore(ctx, learner, block)
}

// scoreRecorder captures upserts for assertions.
type scoreRecorder struct {
	rows map[course.BlockID]scores.LeafScore
}

func (s *scoreRecorder) Upsert(_ context.Context, _, _ string, blockID course.BlockID, sc scores.LeafScore) error {
	s.rows[blockID] = sc
	return nil
}

func TestImportAndGetCourse(t *testing.T) {
	store := course.NewInMemoryStore()
	r := chi.NewRouter()
	r.Post("/courses", api.ImportCourseHandler(store, nil))
	r.Get("/courses/{courseID}", api.GetCourseHandler(store))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Post(srv.URL+"/courses", "application/json", strings.NewReader(demoSnapshot))
	if err != nil {
		t.Fatalf("POST /courses: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("import status = %d", res.StatusCode)
	}
	var imported struct {
		CourseID string `json:"course_id"`
		Blocks   int    `json:"blocks"`
	}
	if err := json.NewDecoder(res.Body).Decode(&imported); err != nil {
		t.Fatalf("decode import response: %v", err)
	}
	if imported.CourseID != "course-v1:demo" || imported.Blocks != 5 {
		t.Fatalf("import response = %+v", imported)
	}

	res, err = http.Get(srv.URL + "/courses/course-v1:demo")
	if err != nil {
		t.Fatalf("GET course: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("get status = %d", res.StatusCode)
	}
	var snap course.Snapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.Blocks) != 5 || snap.Blocks[0].ID != "root" {
		t.Fatalf("snapshot blocks wrong: %+v", snap.Blocks)
	}

	res, err = http.Get(srv.URL + "/courses/course-v1:nope")
	if err != nil {
		t.Fatalf("GET missing course: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 404 {
		t.Fatalf("missing course status = %d, want 404", res.StatusCode)
	}
}

func TestImportCourseRejectsBadStructure(t *testing.T) {
	store := course.NewInMemoryStore()
	r := chi.NewRouter()
	r.Post("/courses", api.ImportCourseHandler(store, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	// p1 appears twice
	bad := `{"course_id":"c","root":"root","blocks":[
		{"id":"root","category":"course","children":["p1"]},
		{"id":"p1","category":"problem"},
		{"id":"p1","category":"problem"}]}`
	res, err := http.Post(srv.URL+"/courses", "application/json", strings.NewReader(bad))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 400 {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestImportOutline(t *testing.T) {
	store := course.NewInMemoryStore()
	r := chi.NewRouter()
	r.Post("/courses/outline", api.ImportOutlineHandler(store, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	outline := `<course id="course-v1:xml" display_name="Demo">
	  <chapter id="c1"><sequential id="s1"><problem id="p1" weight="5" graded="true"/></sequential></chapter>
	</course>`
	res, err := http.Post(srv.URL+"/courses/outline", "application/xml", strings.NewReader(outline))
	if err != nil {
		t.Fatalf("POST outline: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if _, err := store.Tree(context.Background(), "course-v1:xml"); err != nil {
		t.Fatalf("imported course missing: %v", err)
	}
}

func TestListBlocks(t *testing.T) {
	courses := seedCourses(t)
	r := chi.NewRouter()
	r.Get("/courses/{courseID}/blocks", api.ListBlocksHandler(courses))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/courses/course-v1:demo/blocks")
	if err != nil {
		t.Fatalf("GET blocks: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var rows []struct {
		ID       string   `json:"id"`
		Category string   `json:"category"`
		Weight   *float64 `json:"weight"`
		HasScore bool     `json:"has_score"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 5 || rows[0].ID != "root" || rows[0].Category != "course" {
		t.Fatalf("rows = %+v", rows)
	}
	// document order: root, ch1, p1, p2, note
	if rows[2].ID != "p1" || !rows[2].HasScore || rows[2].Weight == nil || *rows[2].Weight != 10 {
		t.Fatalf("p1 row = %+v", rows[2])
	}
	if rows[4].ID != "note" || rows[4].HasScore {
		t.Fatalf("note row = %+v", rows[4])
	}

	res, err = http.Get(srv.URL + "/courses/none/blocks")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 404 {
		t.Fatalf("missing course status = %d, want 404", res.StatusCode)
	}
}

func TestUpsertScoresInheritsBlockDefaults(t *testing.T) {
	courses := seedCourses(t)
	rec := &scoreRecorder{rows: map[course.BlockID]scores.LeafScore{}}
	r := chi.NewRouter()
	r.Put("/courses/{courseID}/learners/{learnerID}/scores", api.UpsertScoresHandler(courses, rec, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	body := `{"scores":[
		{"block_id":"p1","raw_earned":2,"raw_possible":5},
		{"block_id":"p2","raw_earned":1,"raw_possible":2,"graded":false}
	]}`
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/courses/course-v1:demo/learners/u1/scores", strings.NewReader(body))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT scores: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}

	p1 := rec.rows["p1"]
	if p1.Weight == nil || *p1.Weight != 10 || !p1.Graded {
		t.Fatalf("p1 did not inherit block defaults: %+v", p1)
	}
	p2 := rec.rows["p2"]
	if p2.Weight != nil || p2.Graded {
		t.Fatalf("p2 row wrong: %+v", p2)
	}
}

func TestUpsertScoresRejectsBadBlocks(t *testing.T) {
	courses := seedCourses(t)
	rec := &scoreRecorder{rows: map[course.BlockID]scores.LeafScore{}}
	r := chi.NewRouter()
	r.Put("/courses/{courseID}/learners/{learnerID}/scores", api.UpsertScoresHandler(courses, rec, nil))
	srv := httptest.NewServer(r)
	defer srv.Close()

	for name, body := range map[string]string{
		"unknown block":   `{"scores":[{"block_id":"zz","raw_earned":1,"raw_possible":2}]}`,
		"unscorable html": `{"scores":[{"block_id":"note","raw_earned":1,"raw_possible":2}]}`,
	} {
		req, _ := http.NewRequest(http.MethodPut, srv.URL+"/courses/course-v1:demo/learners/u1/scores", strings.NewReader(body))
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		res.Body.Close()
		if res.StatusCode != 400 {
			t.Fatalf("%s: status = %d, want 400", name, res.StatusCode)
		}
		if len(rec.rows) != 0 {
			t.Fatalf("%s: rows written despite rejection", name)
		}
	}
}

func TestGetGradeHandler(t *testing.T) {
	courses := seedCourses(t)
	ten := 10.0
	mem := scores.NewMemoryStore()
	mem.Put("u1", "p1", scores.LeafScore{RawEarned: 4, RawPossible: 5, Weight: &ten, Graded: true})
	mem.Put("u1", "p2", scores.LeafScore{RawEarned: 1, RawPossible: 2, Graded: true})
	factory := grades.NewFactory(courses, mem)

	r := chi.NewRouter()
	r.Get("/courses/{courseID}/learners/{learnerID}/grade", api.GetGradeHandler(factory))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/courses/course-v1:demo/learners/u1/grade?detail=problems")
	if err != nil {
		t.Fatalf("GET grade: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var got struct {
		CourseID string                                   `json:"course_id"`
		Learner  string                                   `json:"learner_id"`
		Percent  float64                                  `json:"percent"`
		Letter   string                                   `json:"letter"`
		Totals   map[course.BlockID]grades.AggregateScore `json:"totals"`
		Problems map[course.BlockID]grades.ProblemScore   `json:"problems"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// p1 rescales to (8, 10) via its weight; p2 stays (1, 2)
	if got.Percent != 0.75 || got.Letter != "Pass" {
		t.Fatalf("percent %v letter %q, want 0.75 Pass", got.Percent, got.Letter)
	}
	root := got.Totals["root"]
	if root.All.Earned != 9 || root.All.Possible != 12 {
		t.Fatalf("root total = %+v", root.All)
	}
	if len(got.Problems) != 2 {
		t.Fatalf("problems = %+v", got.Problems)
	}

	res, err = http.Get(srv.URL + "/courses/course-v1:nope/learners/u1/grade")
	if err != nil {
		t.Fatalf("GET unknown course: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 404 {
		t.Fatalf("unknown course status = %d, want 404", res.StatusCode)
	}
}

func TestGetBlockGradeHandler(t *testing.T) {
	courses := seedCourses(t)
	mem := scores.NewMemoryStore()
	mem.Put("u1", "p2", scores.LeafScore{RawEarned: 1, RawPossible: 2, Graded: true})
	factory := grades.NewFactory(courses, mem)

	r := chi.NewRouter()
	r.Get("/courses/{courseID}/learners/{learnerID}/grade/blocks/{blockID}", api.GetBlockGradeHandler(factory))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Get(srv.URL + "/courses/course-v1:demo/learners/u1/grade/blocks/ch1")
	if err != nil {
		t.Fatalf("GET block grade: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	var got struct {
		BlockID string       `json:"block_id"`
		All     grades.Total `json:"all"`
	}
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.BlockID != "ch1" || got.All.Earned != 1 || got.All.Possible != 2 {
		t.Fatalf("block grade = %+v", got)
	}

	res, err = http.Get(srv.URL + "/courses/course-v1:demo/learners/u1/grade/blocks/zz")
	if err != nil {
		t.Fatalf("GET unknown block: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 404 {
		t.Fatalf("unknown block status = %d, want 404", res.StatusCode)
	}
}

func TestBatchGradesStreamsNDJSON(t *testing.T) {
	courses := seedCourses(t)
	mem := scores.NewMemoryStore()
	mem.Put("u1", "p1", scores.LeafScore{RawEarned: 5, RawPossible: 5, Graded: true})
	provider := &failingScores{inner: mem, fail: map[string]error{"u2": errors.New("score service unavailable")}}
	factory := grades.NewFactory(courses, provider)

	r := chi.NewRouter()
	r.Post("/courses/{courseID}/grades", api.BatchGradesHandler(factory, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Post(srv.URL+"/courses/course-v1:demo/grades", "application/json",
		strings.NewReader(`{"learners":["u1","u2","u3"]}`))
	if err != nil {
		t.Fatalf("POST grades: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != 200 {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content-type = %q", ct)
	}

	type line struct {
		Learner string   `json:"learner_id"`
		Percent *float64 `json:"percent"`
		Error   string   `json:"error"`
	}
	var lines []line
	sc := bufio.NewScanner(res.Body)
	for sc.Scan() {
		var l line
		if err := json.Unmarshal(sc.Bytes(), &l); err != nil {
			t.Fatalf("bad line %q: %v", sc.Text(), err)
		}
		lines = append(lines, l)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if lines[0].Learner != "u1" || lines[0].Percent == nil || *lines[0].Percent != 1 {
		t.Fatalf("u1 line = %+v", lines[0])
	}
	if lines[1].Learner != "u2" || lines[1].Percent != nil || lines[1].Error == "" {
		t.Fatalf("u2 line = %+v", lines[1])
	}
	if lines[2].Learner != "u3" || lines[2].Percent == nil || *lines[2].Percent != 0 {
		t.Fatalf("u3 line = %+v", lines[2])
	}
}

func TestBatchGradesUnknownCourse(t *testing.T) {
	factory := grades.NewFactory(course.NewInMemoryStore(), scores.NewMemoryStore())
	r := chi.NewRouter()
	r.Post("/courses/{courseID}/grades", api.BatchGradesHandler(factory, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	res, err := http.Post(srv.URL+"/courses/none/grades", "application/json",
		strings.NewReader(`{"learners":["u1"]}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != 404 {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}
