package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/events"
	"github.com/mind-engage/mindengage-grades/internal/scores"
)

// ScoreWriter is the score-store surface the upsert handler needs.
type ScoreWriter interface {
	Upsert(ctx context.Context, courseID, learnerID string, blockID course.BlockID, sc scores.LeafScore) error
}

// ScoreReader loads all of one learner's rows in a course.
type ScoreReader interface {
	LearnerScores(ctx context.Context, courseID, learnerID string) (map[course.BlockID]scores.LeafScore, error)
}

type scoreRow struct {
	BlockID     string   `json:"block_id"`
	RawEarned   float64  `json:"raw_earned"`
	RawPossible float64  `json:"raw_possible"`
	Weight      *float64 `json:"weight,omitempty"`
	Graded      *bool    `json:"graded,omitempty"`
}

// UpsertScoresHandler records raw scores for one learner. Rows must name
// scorable blocks of the course; weight and graded fall back to the block's
// authored values when omitted. All rows are validated before any write.
func UpsertScoresHandler(trees course.TreeProvider, store ScoreWriter, ev *events.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		learnerID := chi.URLParam(r, "learnerID")

		var req struct {
			Scores []scoreRow `json:"scores"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Scores) == 0 {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		tree, err := trees.Tree(r.Context(), courseID)
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}

		rows := make(map[course.BlockID]scores.LeafScore, len(req.Scores))
		for _, row := range req.Scores {
			blk, ok := tree.Get(course.BlockID(row.BlockID))
			if !ok {
				http.Error(w, "unknown block: "+row.BlockID, http.StatusBadRequest)
				return
			}
			if !blk.Category.HasScore() {
				http.Error(w, "block takes no score: "+row.BlockID, http.StatusBadRequest)
				return
			}
			sc := scores.LeafScore{
				RawEarned:   row.RawEarned,
				RawPossible: row.RawPossible,
				Weight:      row.Weight,
				Graded:      blk.Graded,
			}
			if sc.Weight == nil {
				sc.Weight = blk.Weight
			}
			if row.Graded != nil {
				sc.Graded = *row.Graded
			}
			rows[blk.ID] = sc
		}

		for id, sc := range rows {
			if err := store.Upsert(r.Context(), courseID, learnerID, id, sc); err != nil {
				http.Error(w, "store error", http.StatusInternalServerError)
				return
			}
		}
		if ev != nil {
			_ = ev.AppendJSON(r.Context(), events.TypeScoresUpserted, courseID, map[string]any{
				"learner_id": learnerID,
				"rows":       len(rows),
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"updated": len(rows)})
	}
}

// ListScoresHandler returns the recorded rows for one learner in a course.
func ListScoresHandler(store ScoreReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := store.LearnerScores(r.Context(), chi.URLParam(r, "courseID"), chi.URLParam(r, "learnerID"))
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = map[course.BlockID]scores.LeafScore{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}
}
