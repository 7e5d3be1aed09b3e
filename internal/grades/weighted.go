package grades

// WeightedScore is a leaf score rescaled onto its authored weight.
type WeightedScore struct {
	Earned   float64 `json:"earned"`
	Possible float64 `json:"possible"`
	Graded   bool    `json:"graded"`
}

// Weighted converts a raw (earned, possible) pair into a weighted score.
// When weight is present and the raw possible is non-zero the pair is
// rescaled onto weight points; otherwise it passes through unchanged, so a
// zero raw possible never divides. All real-valued inputs are legal:
// authoring systems do not validate weights, so negative and zero values
// must produce a deterministic result rather than an error.
func Weighted(rawEarned, rawPossible float64, weight *float64) WeightedScore {
	earned, possible := rawEarned, rawPossible
	if weight != nil && rawPossible != 0 {
		earned = rawEarned / rawPossible * *weight
		possible = *weight
	}
	return WeightedScore{Earned: earned, Possible: possible, Graded: possible > 0}
}
