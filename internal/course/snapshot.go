package course

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/mind-engage/mindengage-grades/internal/policy"
)

// Snapshot is the published course-structure document: the unit stored by
// snapshot stores and accepted by the import API. A snapshot carries either
// inline grading cutoffs or the name of a registered policy; inline wins.
type Snapshot struct {
	CourseID   string         `json:"course_id"`
	Root       BlockID        `json:"root"`
	Blocks     []Block        `json:"blocks"`
	Policy     *policy.Policy `json:"grading_policy,omitempty"`
	PolicyName string         `json:"policy_name,omitempty"`
}

// DecodeSnapshot reads one JSON snapshot document.
func DecodeSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}

// Encode serializes the snapshot document.
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// Tree validates the snapshot and resolves its grading policy.
func (s Snapshot) Tree() (*Tree, error) {
	pol, err := policy.Resolve(s.Policy, s.PolicyName)
	if err != nil {
		return nil, err
	}
	return NewTree(s.CourseID, s.Root, s.Blocks, pol)
}

// SnapshotOf reverses a Tree back into document form, blocks in document
// order. The resolved policy is embedded inline.
func SnapshotOf(t *Tree) Snapshot {
	blocks := make([]Block, 0, t.Len())
	t.Walk(func(b Block) bool {
		blocks = append(blocks, b)
		return true
	})
	s := Snapshot{CourseID: t.CourseID(), Root: t.Root(), Blocks: blocks}
	if !t.Policy().Empty() {
		p := t.Policy()
		s.Policy = &p
	}
	return s
}
