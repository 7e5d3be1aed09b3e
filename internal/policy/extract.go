package policy

import "fmt"

// Resolve picks the effective policy for a course document. Inline cutoffs
// win over a registered name; neither means the course grades without
// letters.
func Resolve(inline *Policy, name string) (Policy, error) {
	switch {
	case inline != nil:
		p, err := New(inline.Name, inline.Cutoffs)
		if err != nil {
			return Policy{}, fmt.Errorf("grading policy: %w", err)
		}
		return p, nil
	case name != "":
		p, ok := Lookup(name)
		if !ok {
			return Policy{}, fmt.Errorf("unknown grading policy %q", name)
		}
		return p, nil
	}
	return Policy{}, nil
}
