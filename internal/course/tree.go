package course

import (
	"errors"
	"fmt"

	"github.com/mind-engage/mindengage-grades/internal/policy"
)

// Tree is an immutable course structure: one root, unique ids, acyclic,
// children in authored order. Grades are computed against a Tree, never
// against raw snapshot documents.
type Tree struct {
	courseID string
	root     BlockID
	blocks   map[BlockID]Block
	order    []BlockID
	policy   policy.Policy
}

// NewTree validates blocks and assembles a Tree. Ids must be unique, every
// child reference must resolve, only containers may have children, each
// non-root block must have exactly one parent and every block must be
// reachable from the root.
func NewTree(courseID string, root BlockID, blocks []Block, pol policy.Policy) (*Tree, error) {
	if courseID == "" {
		return nil, errors.New("course id is required")
	}
	byID := make(map[BlockID]Block, len(blocks))
	for _, b := range blocks {
		if b.ID == "" {
			return nil, errors.New("block id is required")
		}
		if _, dup := byID[b.ID]; dup {
			return nil, fmt.Errorf("duplicate block id: %s", b.ID)
		}
		if len(b.Children) > 0 && b.Category.Kind() != KindContainer {
			return nil, fmt.Errorf("block %s: category %s cannot have children", b.ID, b.Category)
		}
		byID[b.ID] = b
	}
	if _, ok := byID[root]; !ok {
		return nil, fmt.Errorf("root block %s not present", root)
	}
	parents := map[BlockID]int{}
	for _, b := range byID {
		for _, c := range b.Children {
			if _, ok := byID[c]; !ok {
				return nil, fmt.Errorf("block %s: unknown child %s", b.ID, c)
			}
			parents[c]++
			if parents[c] > 1 {
				return nil, fmt.Errorf("block %s has multiple parents", c)
			}
		}
	}
	if parents[root] != 0 {
		return nil, fmt.Errorf("root block %s has a parent", root)
	}

	t := &Tree{courseID: courseID, root: root, blocks: byID, policy: pol}
	t.order = make([]BlockID, 0, len(byID))
	var walk func(id BlockID)
	walk = func(id BlockID) {
		t.order = append(t.order, id)
		for _, c := range t.blocks[id].Children {
			walk(c)
		}
	}
	walk(root)
	if len(t.order) != len(byID) {
		return nil, fmt.Errorf("%d blocks unreachable from root", len(byID)-len(t.order))
	}
	return t, nil
}

func (t *Tree) CourseID() string      { return t.courseID }
func (t *Tree) Root() BlockID         { return t.root }
func (t *Tree) Policy() policy.Policy { return t.policy }
func (t *Tree) Len() int              { return len(t.order) }

// Get looks up a block by id.
func (t *Tree) Get(id BlockID) (Block, bool) {
	b, ok := t.blocks[id]
	return b, ok
}

// Children returns the ordered child ids of a block.
func (t *Tree) Children(id BlockID) []BlockID {
	return t.blocks[id].Children
}

// Walk visits every block in document order (parents before children,
// children in authored order). Returning false stops the walk.
func (t *Tree) Walk(fn func(Block) bool) {
	for _, id := range t.order {
		if !fn(t.blocks[id]) {
			return
		}
	}
}
