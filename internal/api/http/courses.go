package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-grades/internal/course"
	"github.com/mind-engage/mindengage-grades/internal/events"
)

// Handlers only; routes remain in main.go

// ImportCourseHandler stores a course structure from a snapshot document.
// The snapshot is validated as a tree before anything is written.
func ImportCourseHandler(store course.Store, ev *events.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := course.DecodeSnapshot(r.Body)
		if err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		importSnapshot(w, r, store, ev, snap, "json")
	}
}

// ImportOutlineHandler stores a course structure from an XML outline
// export, the format course authoring tools produce.
func ImportOutlineHandler(store course.Store, ev *events.Repo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := course.ParseOutlineXML(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		importSnapshot(w, r, store, ev, snap, "xml")
	}
}

func importSnapshot(w http.ResponseWriter, r *http.Request, store course.Store, ev *events.Repo, snap course.Snapshot, format string) {
	tree, err := snap.Tree()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.Put(r.Context(), snap); err != nil {
		http.Error(w, "store error", http.StatusInternalServerError)
		return
	}
	if ev != nil {
		_ = ev.AppendJSON(r.Context(), events.TypeCourseImported, tree.CourseID(), map[string]any{
			"blocks": tree.Len(),
			"format": format,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"course_id": tree.CourseID(), "blocks": tree.Len()})
}

func ListCoursesHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := store.List(r.Context())
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		if ids == nil {
			ids = []string{} // [] not null
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ids)
	}
}

type blockRow struct {
	ID          course.BlockID  `json:"id"`
	Category    course.Category `json:"category"`
	DisplayName string          `json:"display_name,omitempty"`
	Graded      bool            `json:"graded,omitempty"`
	Weight      *float64        `json:"weight,omitempty"`
	HasScore    bool            `json:"has_score"`
}

// ListBlocksHandler returns the course outline as a flat list in document
// order, for staff tooling that only needs ids and categories.
func ListBlocksHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := store.Tree(r.Context(), chi.URLParam(r, "courseID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		rows := make([]blockRow, 0, tree.Len())
		tree.Walk(func(b course.Block) bool {
			rows = append(rows, blockRow{
				ID:          b.ID,
				Category:    b.Category,
				DisplayName: b.DisplayName,
				Graded:      b.Graded,
				Weight:      b.Weight,
				HasScore:    b.Category.HasScore(),
			})
			return true
		})
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	}
}

// GetCourseHandler returns the stored structure as a snapshot document,
// blocks in document order with the resolved policy inline.
func GetCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tree, err := store.Tree(r.Context(), chi.URLParam(r, "courseID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "store error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(course.SnapshotOf(tree))
	}
}
