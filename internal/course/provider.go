package course

import (
	"context"
	"errors"
)

// ErrNotFound reports an unknown course id. Providers must return it
// (possibly wrapped) so callers can distinguish missing courses from
// backend failures.
var ErrNotFound = errors.New("course not found")

// TreeProvider resolves a course id to its structure snapshot.
type TreeProvider interface {
	Tree(ctx context.Context, courseID string) (*Tree, error)
}

// Store is a TreeProvider that also accepts snapshot writes.
type Store interface {
	TreeProvider
	Put(ctx context.Context, snap Snapshot) error
	List(ctx context.Context) ([]string, error)
}
