package record

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carenote/carenote/internal/domain/ai"
	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/careplan"
	"github.com/carenote/carenote/internal/domain/diagnosis"
	"github.com/carenote/carenote/internal/domain/taxonomy"
)

// ErrNoAssessment is returned when an operation needs observations but
// no assessment has been attached yet.
var ErrNoAssessment = fmt.Errorf("record has no assessment")

// ErrItemNotFound is returned when a care-plan item id does not exist
// on the record.
var ErrItemNotFound = fmt.Errorf("care-plan item not found")

// Service drives the record workflow: attach an assessment, compute
// candidates, accept diagnoses, generate and edit the plan, and move
// the record through review. Every mutating method validates against
// the in-memory aggregate first and persists the whole record in one
// repo call, so a failure never leaves partial state behind.
type Service struct {
	repo      Repository
	idx       *taxonomy.Index
	augmentor *ai.Augmentor
	threshold float64
}

func NewService(repo Repository, idx *taxonomy.Index, augmentor *ai.Augmentor, threshold float64) *Service {
	return &Service{repo: repo, idx: idx, augmentor: augmentor, threshold: threshold}
}

func (s *Service) CreateRecord(ctx context.Context, patientRef string) (*PatientRecord, error) {
	if patientRef == "" {
		return nil, fmt.Errorf("patient_ref is required")
	}
	rec := New(patientRef)
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) GetRecord(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListRecords(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*PatientRecord, int, error) {
	return s.repo.ListByPatient(ctx, patientRef, limit, offset)
}

func (s *Service) DeleteRecord(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// AttachAssessment normalizes the raw payload and stores it on the
// record. Malformed fields are reported alongside the result; they
// never block normalization of the rest.
func (s *Service) AttachAssessment(ctx context.Context, id uuid.UUID, raw assessment.RawAssessment) (*PatientRecord, []assessment.FieldError, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.CanEditAssessment() {
		return nil, nil, &LockedError{Status: rec.Review.Status, What: "assessment"}
	}

	obs, fieldErrs := assessment.Normalize(raw, s.idx)
	rec.Assessment = &assessment.Record{
		ID:           uuid.New(),
		Raw:          raw,
		Observations: obs,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, nil, err
	}
	return rec, fieldErrs, nil
}

// Candidates recomputes the ranked diagnosis list from the stored
// observations. Candidates are ephemeral; nothing is persisted.
func (s *Service) Candidates(ctx context.Context, id uuid.UUID) ([]diagnosis.Candidate, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Assessment == nil {
		return nil, ErrNoAssessment
	}
	return diagnosis.Match(rec.Assessment.Observations, s.idx, s.threshold), nil
}

// AcceptDiagnoses stores the nurse's selection. Every id must exist in
// the taxonomy; the matcher never accepts anything on its own.
func (s *Service) AcceptDiagnoses(ctx context.Context, id uuid.UUID, taxonomyIDs []string) (*PatientRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.CanEditAssessment() {
		return nil, &LockedError{Status: rec.Review.Status, What: "accepted diagnoses"}
	}

	for _, tid := range taxonomyIDs {
		if _, err := s.idx.Lookup(tid); err != nil {
			return nil, fmt.Errorf("accept diagnosis %q: %w", tid, err)
		}
	}
	rec.AcceptedDiagnoses = append([]string(nil), taxonomyIDs...)
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GeneratePlan derives the care plan from the accepted diagnoses,
// merging with the existing plan so overrides survive. With augment
// set, the configured provider enriches the fresh items; augmentation
// failure silently degrades to the taxonomy-derived plan.
func (s *Service) GeneratePlan(ctx context.Context, id uuid.UUID, augment bool) (*PatientRecord, []careplan.Warning, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !rec.CanEditPlan() {
		return nil, nil, &LockedError{Status: rec.Review.Status, What: "care plan"}
	}

	plan, warnings, err := careplan.Generate(rec.AcceptedDiagnoses, s.idx, rec.Plan)
	if err != nil {
		return nil, nil, err
	}
	if augment && s.augmentor != nil {
		plan = s.augmentor.AugmentPlan(ctx, plan, s.planContexts(rec))
	}

	rec.Plan = plan
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, nil, err
	}
	return rec, warnings, nil
}

// OverrideItem replaces a plan item's content with the nurse's wording
// and marks it overridden so regeneration leaves it alone.
func (s *Service) OverrideItem(ctx context.Context, id, itemID uuid.UUID, goal string, interventions []string) (*PatientRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.CanEditPlan() {
		return nil, &LockedError{Status: rec.Review.Status, What: "care plan"}
	}

	for i := range rec.Plan {
		if rec.Plan[i].ID != itemID {
			continue
		}
		if goal != "" {
			rec.Plan[i].Goal = goal
		}
		if interventions != nil {
			rec.Plan[i].Interventions = append([]string(nil), interventions...)
		}
		rec.Plan[i].Source = careplan.SourceNurse
		rec.Plan[i].Overridden = true
		rec.Plan[i].Rationale = ""
		if err := s.repo.Update(ctx, rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return nil, ErrItemNotFound
}

// Transition moves the record through the review workflow and persists
// the result with its audit entry.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to ReviewStatus, actor string) (*PatientRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := rec.Transition(to, actor, time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// NewVersion supersedes a finalized record with a fresh draft clone at
// the next version number.
func (s *Service) NewVersion(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := rec.NewVersion(time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// planContexts builds the per-diagnosis context handed to the
// augmentation provider: the entry label plus the present observation
// tokens from the assessment.
func (s *Service) planContexts(rec *PatientRecord) map[string]ai.PlanContext {
	var observations []string
	if rec.Assessment != nil {
		for _, o := range rec.Assessment.Observations {
			if o.Polarity == assessment.PolarityPresent {
				observations = append(observations, o.Token)
			}
		}
	}

	contexts := make(map[string]ai.PlanContext, len(rec.AcceptedDiagnoses))
	for _, tid := range rec.AcceptedDiagnoses {
		entry, err := s.idx.Lookup(tid)
		if err != nil {
			continue
		}
		contexts[tid] = ai.PlanContext{
			DiagnosisLabel: entry.Label,
			Observations:   observations,
		}
	}
	return contexts
}
