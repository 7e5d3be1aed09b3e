package course

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore persists course snapshots in the course_snapshots table as raw
// JSON documents, decoded and validated on read.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) Put(ctx context.Context, snap Snapshot) error {
	// validate before persisting so reads never surface a broken tree
	if _, err := snap.Tree(); err != nil {
		return err
	}
	buf, err := snap.Encode()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO course_snapshots (course_id, structure_json, updated_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (course_id) DO UPDATE SET structure_json=EXCLUDED.structure_json, updated_at=EXCLUDED.updated_at`,
		snap.CourseID, string(buf), time.Now().Unix())
	return err
}

func (s *SQLStore) Tree(ctx context.Context, courseID string) (*Tree, error) {
	row := s.db.QueryRowContext(ctx, `SELECT structure_json FROM course_snapshots WHERE course_id=$1`, courseID)
	var raw string
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", courseID, err)
	}
	return snap.Tree()
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT course_id FROM course_snapshots ORDER BY course_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
