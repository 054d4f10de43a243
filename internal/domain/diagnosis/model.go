package diagnosis

// Candidate is a taxonomy entry scored against the current observation
// set. Candidates are recomputed on demand and never persisted on their
// own; only the nurse's acceptance decision is stored on the record.
type Candidate struct {
	TaxonomyID             string   `json:"taxonomy_id"`
	Label                  string   `json:"label"`
	Score                  float64  `json:"score"`
	MatchedCharacteristics []string `json:"matched_characteristics"`
	MatchedFactors         []string `json:"matched_factors"`
	Rationale              string   `json:"rationale"`
}
