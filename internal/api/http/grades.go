package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/grades"
)

type gradeResponse struct {
	CourseID string                                   `json:"course_id"`
	Learner  string                                   `json:"learner_id"`
	Percent  float64                                  `json:"percent"`
	Letter   string                                   `json:"letter,omitempty"`
	Totals   map[course.BlockID]grades.AggregateScore `json:"totals"`
	Problems map[course.BlockID]grades.ProblemScore   `json:"problems,omitempty"`
}

func gradeDTO(g *grades.CourseGrade, detail bool) gradeResponse {
	out := gradeResponse{
		CourseID: g.CourseID(),
		Learner:  g.Learner(),
		Percent:  g.Percent(),
		Letter:   g.Letter(),
		Totals:   g.Breakdown(),
	}
	if detail {
		out.Problems = g.ProblemScores()
	}
	return out
}

// GetGradeHandler computes one learner's grade on demand. ?detail=problems
// adds the per-problem rows to the response.
func GetGradeHandler(factory *grades.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := factory.CreateForCourse(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "learnerID"))
		if errors.Is(err, grades.ErrCourseNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(gradeDTO(g, r.URL.Query().Get("detail") == "problems"))
	}
}

// GetBlockGradeHandler returns the aggregate for a single block of one
// learner's grade.
func GetBlockGradeHandler(factory *grades.Factory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := factory.CreateForCourse(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "learnerID"))
		if errors.Is(err, grades.ErrCourseNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		blockID := course.BlockID(chi.URLParam(r, "blockID"))
		agg, err := g.Aggregate(blockID)
		if errors.Is(err, grades.ErrUnknownBlock) {
			http.Error(w, "unknown block", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"block_id": blockID,
			"all":      agg.All,
			"graded":   agg.Graded,
		})
	}
}

type batchLine struct {
	Learner string   `json:"learner_id"`
	Percent *float64 `json:"percent,omitempty"`
	Letter  string   `json:"letter,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// BatchGradesHandler grades a list of learners and streams one NDJSON line
// per learner, in input order, as results become available. A failed
// learner produces an error line; only an unknown course fails the request
// itself. Closing the connection stops the remaining work.
func BatchGradesHandler(factory *grades.Factory, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")

		var req struct {
			Learners []string `json:"learners"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		run, err := factory.IterGrades(r.Context(), courseID, req.Learners)
		if errors.Is(err, grades.ErrCourseNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		defer run.Close()

		log.Info("batch grading started",
			zap.String("run_id", run.RunID()),
			zap.String("course_id", courseID),
			zap.Int("learners", run.Len()))

		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		enc := json.NewEncoder(w)

		for {
			res, ok := run.Next()
			if !ok {
				return
			}
			line := batchLine{Learner: res.Learner, Error: res.Err}
			if res.Grade != nil {
				p := res.Grade.Percent()
				line.Percent = &p
				line.Letter = res.Grade.Letter()
			}
			if err := enc.Encode(line); err != nil {
				// client went away; Close cancels the rest
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
