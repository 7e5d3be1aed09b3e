package course

// BlockID identifies one node of a course structure.
type BlockID string

// Category is the authored block type. Scoring never branches on the
// category itself, only on the Kind it maps to.
type Category string

const (
	CategoryCourse     Category = "course"
	CategoryChapter    Category = "chapter"
	CategorySequential Category = "sequential"
	CategoryVertical   Category = "vertical"
	CategoryProblem    Category = "problem"
	CategoryHTML       Category = "html"
)

// Kind classifies categories for scoring. The set is closed: a block is a
// container, a scorable leaf, or an unscorable leaf, nothing else.
type Kind int

const (
	KindContainer Kind = iota
	KindScorableLeaf
	KindUnscorableLeaf
)

func (c Category) Kind() Kind {
	switch c {
	case CategoryCourse, CategoryChapter, CategorySequential, CategoryVertical:
		return KindContainer
	case CategoryProblem:
		return KindScorableLeaf
	default:
		return KindUnscorableLeaf
	}
}

// HasScore reports whether blocks of this category produce points.
func (c Category) HasScore() bool { return c.Kind() == KindScorableLeaf }

// Block is one node of a course structure snapshot. Weight is the authored
// override for a problem's point value; nil means "use the raw possible".
type Block struct {
	ID          BlockID   `json:"id"`
	Category    Category  `json:"category"`
	DisplayName string    `json:"display_name,omitempty"`
	Weight      *float64  `json:"weight,omitempty"`
	Graded      bool      `json:"graded,omitempty"`
	Children    []BlockID `json:"children,omitempty"`
}
