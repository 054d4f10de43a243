package careplan

import "github.com/google/uuid"

// Source records where a plan item's current content came from, so
// taxonomy output, AI phrasing, and nurse edits stay distinguishable.
type Source string

const (
	SourceTaxonomy Source = "taxonomy-derived"
	SourceAI       Source = "ai-augmented"
	SourceNurse    Source = "nurse-authored"
)

// Item is one goal with its interventions, tied to exactly one accepted
// diagnosis. Overridden items belong to the nurse: regeneration keeps
// them verbatim and never writes over them.
type Item struct {
	ID            uuid.UUID `json:"id"`
	DiagnosisID   string    `json:"diagnosis_id"`
	Goal          string    `json:"goal"`
	Interventions []string  `json:"interventions"`
	Source        Source    `json:"source"`
	Overridden    bool      `json:"overridden"`
	Rationale     string    `json:"rationale,omitempty"`
}

// Warning reports a recoverable condition found while merging a plan,
// such as an overridden item whose diagnosis is no longer accepted.
type Warning struct {
	ItemID      uuid.UUID `json:"item_id"`
	DiagnosisID string    `json:"diagnosis_id"`
	Reason      string    `json:"reason"`
}
