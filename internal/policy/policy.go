package policy

import (
	"errors"
	"fmt"
	"sort"
)

// Policy maps a course percent in [0,1] to a letter grade. Cutoffs are kept
// in descending Min order so LetterFor can take the first match.
type Policy struct {
	Name    string   `json:"name,omitempty"`
	Cutoffs []Cutoff `json:"cutoffs,omitempty"`
}

type Cutoff struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
}

// New validates and normalizes a cutoff table into a Policy.
func New(name string, cutoffs []Cutoff) (Policy, error) {
	out := make([]Cutoff, len(cutoffs))
	copy(out, cutoffs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Min > out[j].Min })
	p := Policy{Name: name, Cutoffs: out}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate runs basic consistency checks.
func (p Policy) Validate() error {
	prev := 2.0
	seen := map[string]bool{}
	for _, c := range p.Cutoffs {
		if c.Label == "" {
			return errors.New("cutoff label is required")
		}
		if seen[c.Label] {
			return fmt.Errorf("duplicate cutoff label: %s", c.Label)
		}
		seen[c.Label] = true
		if c.Min <= 0 || c.Min > 1 {
			return fmt.Errorf("cutoff %s: min %v outside (0,1]", c.Label, c.Min)
		}
		if c.Min > prev {
			return fmt.Errorf("cutoff %s out of order", c.Label)
		}
		prev = c.Min
	}
	return nil
}

// LetterFor returns the label of the highest cutoff at or below percent, or
// "" when no cutoff is met or the policy has none.
func (p Policy) LetterFor(percent float64) string {
	for _, c := range p.Cutoffs {
		if percent >= c.Min {
			return c.Label
		}
	}
	return ""
}

// Empty reports whether the policy has no cutoffs at all.
func (p Policy) Empty() bool { return len(p.Cutoffs) == 0 }
