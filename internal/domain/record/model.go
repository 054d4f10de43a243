package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/careplan"
)

// ReviewStatus is the record's position in the review workflow.
type ReviewStatus string

const (
	StatusDraft     ReviewStatus = "draft"
	StatusSubmitted ReviewStatus = "submitted"
	StatusReviewed  ReviewStatus = "reviewed"
	StatusFinalized ReviewStatus = "finalized"
)

// ReviewState carries the status plus the reviewer stamp set when the
// record advances past submitted. Reopening clears the stamp.
type ReviewState struct {
	Status     ReviewStatus `json:"status"`
	ReviewerID string       `json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time   `json:"reviewed_at,omitempty"`
}

// TransitionEvent is one entry in the record's append-only audit trail.
type TransitionEvent struct {
	From  ReviewStatus `json:"from"`
	To    ReviewStatus `json:"to"`
	Actor string       `json:"actor"`
	At    time.Time    `json:"at"`
}

// PatientRecord is the aggregate: one assessment, the nurse's accepted
// diagnoses, the derived care plan, and the review state. It is the
// unit of mutation isolation; every mutating operation validates fully
// and then persists the whole record.
type PatientRecord struct {
	ID                uuid.UUID          `json:"id"`
	PatientRef        string             `json:"patient_ref"`
	Version           int                `json:"version"`
	SupersedesID      *uuid.UUID         `json:"supersedes_id,omitempty"`
	Assessment        *assessment.Record `json:"assessment,omitempty"`
	AcceptedDiagnoses []string           `json:"accepted_diagnoses"`
	Plan              []careplan.Item    `json:"plan"`
	Review            ReviewState        `json:"review"`
	Audit             []TransitionEvent  `json:"audit"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// New returns a fresh version-1 draft for the given patient reference.
func New(patientRef string) *PatientRecord {
	return &PatientRecord{
		ID:         uuid.New(),
		PatientRef: patientRef,
		Version:    1,
		Review:     ReviewState{Status: StatusDraft},
	}
}

// CanEditAssessment reports whether assessment and diagnosis fields are
// still open. They lock when the record leaves draft.
func (r *PatientRecord) CanEditAssessment() bool {
	return r.Review.Status == StatusDraft
}

// CanEditPlan reports whether care-plan items may still change. The
// plan stays editable through submitted and locks at reviewed.
func (r *PatientRecord) CanEditPlan() bool {
	return r.Review.Status == StatusDraft || r.Review.Status == StatusSubmitted
}
