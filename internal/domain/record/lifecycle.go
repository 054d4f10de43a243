package record

import (
	"fmt"
	"time"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/careplan"
)

// InvalidTransitionError names the current and requested state of a
// rejected transition. No transition is ever silently coerced.
type InvalidTransitionError struct {
	From ReviewStatus
	To   ReviewStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// GuardError reports a transition that is structurally allowed but
// whose precondition is not met, such as submitting an empty record.
type GuardError struct {
	To     ReviewStatus
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("cannot enter %s: %s", e.To, e.Reason)
}

// LockedError reports a mutation attempted while the record's state
// forbids it, including every mutation of a finalized record.
type LockedError struct {
	Status ReviewStatus
	What   string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("record is %s: %s is locked", e.Status, e.What)
}

var allowedTransitions = map[ReviewStatus][]ReviewStatus{
	StatusDraft:     {StatusSubmitted},
	StatusSubmitted: {StatusReviewed, StatusDraft},
	StatusReviewed:  {StatusFinalized, StatusDraft},
	StatusFinalized: {},
}

func transitionAllowed(from, to ReviewStatus) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition moves the record to the requested state, enforcing the
// workflow guards and appending to the audit trail. The actor is the
// nurse for draft/submitted moves and the reviewer for the review
// steps; reviewer distinctness from the author is the caller's policy,
// enforced here only as "reviewer id present".
func (r *PatientRecord) Transition(to ReviewStatus, actor string, now time.Time) error {
	from := r.Review.Status
	if !transitionAllowed(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}

	switch {
	case from == StatusDraft && to == StatusSubmitted:
		if len(r.AcceptedDiagnoses) == 0 {
			return &GuardError{To: to, Reason: "no accepted diagnosis"}
		}
		if len(r.Plan) == 0 {
			return &GuardError{To: to, Reason: "care plan is empty"}
		}
	case from == StatusSubmitted && to == StatusReviewed:
		if actor == "" {
			return &GuardError{To: to, Reason: "reviewer id is required"}
		}
		r.Review.ReviewerID = actor
		at := now
		r.Review.ReviewedAt = &at
	case to == StatusDraft:
		// Reopen: the review stamp no longer stands.
		r.Review.ReviewerID = ""
		r.Review.ReviewedAt = nil
	}

	r.Review.Status = to
	r.Audit = append(r.Audit, TransitionEvent{From: from, To: to, Actor: actor, At: now})
	return nil
}

// NewVersion clones a finalized record into a fresh draft at the next
// version number. The finalized record itself never mutates; this is
// the only way forward once a record is frozen.
func (r *PatientRecord) NewVersion(now time.Time) (*PatientRecord, error) {
	if r.Review.Status != StatusFinalized {
		return nil, &GuardError{To: StatusDraft, Reason: "only finalized records can be superseded"}
	}

	id := r.ID
	next := New(r.PatientRef)
	next.Version = r.Version + 1
	next.SupersedesID = &id
	next.CreatedAt = now
	next.UpdatedAt = now

	if r.Assessment != nil {
		a := *r.Assessment
		a.Raw.Fields = append([]assessment.Field(nil), r.Assessment.Raw.Fields...)
		a.Observations = append([]assessment.Observation(nil), r.Assessment.Observations...)
		next.Assessment = &a
	}
	next.AcceptedDiagnoses = append([]string(nil), r.AcceptedDiagnoses...)
	next.Plan = clonePlan(r.Plan)
	return next, nil
}

func clonePlan(items []careplan.Item) []careplan.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]careplan.Item, len(items))
	for i, item := range items {
		item.Interventions = append([]string(nil), item.Interventions...)
		out[i] = item
	}
	return out
}
