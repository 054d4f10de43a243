package taxonomy

// Entry is one diagnosis definition from the reference taxonomy.
// Entries are immutable once loaded; the Index owns them for the
// process lifetime and shares them across concurrent readers.
type Entry struct {
	ID                      string   `json:"id"`
	Label                   string   `json:"label"`
	Domain                  string   `json:"domain,omitempty"`
	Class                   string   `json:"class,omitempty"`
	Definition              string   `json:"definition,omitempty"`
	DefiningCharacteristics []string `json:"defining_characteristics"`
	RelatedFactors          []string `json:"related_factors,omitempty"`
	RiskFactors             []string `json:"risk_factors,omitempty"`
	SuggestedOutcomes       []string `json:"suggested_outcomes,omitempty"`
	SuggestedInterventions  []string `json:"suggested_interventions,omitempty"`
}

// Factors returns related and risk factors as one list, related first.
// Matching treats both kinds the same way; the split exists only because
// the source taxonomy records actual versus at-risk etiologies separately.
func (e *Entry) Factors() []string {
	out := make([]string, 0, len(e.RelatedFactors)+len(e.RiskFactors))
	out = append(out, e.RelatedFactors...)
	out = append(out, e.RiskFactors...)
	return out
}
