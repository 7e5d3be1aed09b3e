package scores

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mind-engage/mindengage-grades/internal/course"
)

// SQLStore persists leaf scores in the leaf_scores table, keyed by
// (learner_id, block_id). Block ids are globally unique, so reads do not
// need the course id; it is kept on each row for bulk operations.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Upsert(ctx context.Context, courseID, learnerID string, blockID course.BlockID, sc LeafScore) error {
	var weight sql.NullFloat64
	if sc.Weight != nil {
		weight = sql.NullFloat64{Float64: *sc.Weight, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO leaf_scores (learner_id, block_id, course_id, raw_earned, raw_possible, weight, graded, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (learner_id, block_id) DO UPDATE SET
			course_id=EXCLUDED.course_id, raw_earned=EXCLUDED.raw_earned, raw_possible=EXCLUDED.raw_possible,
			weight=EXCLUDED.weight, graded=EXCLUDED.graded, updated_at=EXCLUDED.updated_at`,
		learnerID, string(blockID), courseID, sc.RawEarned, sc.RawPossible, weight, sc.Graded, time.Now().Unix())
	return err
}

func (s *SQLStore) LeafScore(ctx context.Context, learnerID string, blockID course.BlockID) (LeafScore, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT raw_earned, raw_possible, weight, graded FROM leaf_scores
		WHERE learner_id=$1 AND block_id=$2`, learnerID, string(blockID))
	var sc LeafScore
	var weight sql.NullFloat64
	if err := row.Scan(&sc.RawEarned, &sc.RawPossible, &weight, &sc.Graded); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LeafScore{}, false, nil
		}
		return LeafScore{}, false, err
	}
	if weight.Valid {
		w := weight.Float64
		sc.Weight = &w
	}
	return sc, true, nil
}

// LearnerScores loads every score one learner has in one course in a single
// query. Feeds Preloaded providers so batch runs cost one query per learner.
func (s *SQLStore) LearnerScores(ctx context.Context, courseID, learnerID string) (map[course.BlockID]LeafScore, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT block_id, raw_earned, raw_possible, weight, graded FROM leaf_scores
		WHERE course_id=$1 AND learner_id=$2`, courseID, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[course.BlockID]LeafScore{}
	for rows.Next() {
		var block string
		var sc LeafScore
		var weight sql.NullFloat64
		if err := rows.Scan(&block, &sc.RawEarned, &sc.RawPossible, &weight, &sc.Graded); err != nil {
			return nil, err
		}
		if weight.Valid {
			w := weight.Float64
			sc.Weight = &w
		}
		out[course.BlockID(block)] = sc
	}
	return out, rows.Err()
}
