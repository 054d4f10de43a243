package assessment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Category constrains which taxonomy fields an observation may match.
type Category string

const (
	CategoryCharacteristic Category = "characteristic"
	CategoryFactor         Category = "factor"
)

// Polarity records whether the observed finding is present, explicitly
// absent, or undetermined. Only present observations contribute to
// diagnosis scores.
type Polarity string

const (
	PolarityPresent Polarity = "present"
	PolarityAbsent  Polarity = "absent"
	PolarityUnknown Polarity = "unknown"
)

// Observation is one normalized unit of assessment evidence.
type Observation struct {
	Category Category `json:"category"`
	Token    string   `json:"token"`
	Polarity Polarity `json:"polarity"`
	Weight   float64  `json:"weight"`
}

// Field is one structured assessment field. Fields keep their input
// order so normalization output is reproducible.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RawAssessment is the assessment payload as the transport layer
// delivers it: structured fields plus free-text notes. Subjective and
// objective notes arrive separately (the charting convention the intake
// form follows); the narrative carries everything else.
type RawAssessment struct {
	Fields          []Field `json:"fields"`
	SubjectiveNotes string  `json:"subjective_notes,omitempty"`
	ObjectiveNotes  string  `json:"objective_notes,omitempty"`
	Narrative       string  `json:"narrative,omitempty"`
}

// Record is a patient-scoped assessment: the raw input plus the
// observations derived from it. Immutable once the owning patient
// record leaves draft.
type Record struct {
	ID           uuid.UUID     `json:"id"`
	Raw          RawAssessment `json:"raw"`
	Observations []Observation `json:"observations"`
	CreatedAt    time.Time     `json:"created_at"`
}

// FieldError reports one malformed structured field. Errors are
// collected per field so a single bad field never blocks normalization
// of the rest.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}
