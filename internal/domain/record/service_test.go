package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carenote/carenote/internal/domain/ai"
	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/careplan"
	"github.com/carenote/carenote/internal/domain/taxonomy"
)

const fixtureCSV = `id,label,defining_characteristics,related_factors,risk_factors,suggested_outcomes,suggested_interventions
RiskOfFalls,Risk for falls,unsteady gait;history of falls,poor vision,,Patient remains fall-free,Install bed alarm
AcutePain,Acute pain,verbal report of pain;guarding behavior,injury agents,,Patient reports pain below 4/10,Administer prescribed analgesics
`

func newTestIndex(t *testing.T) *taxonomy.Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taxonomy.csv")
	if err := os.WriteFile(path, []byte(fixtureCSV), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	idx, err := taxonomy.Load(path)
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return idx
}

type mockRepo struct {
	records map[uuid.UUID]*PatientRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*PatientRecord)}
}

func (m *mockRepo) Create(_ context.Context, rec *PatientRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

func (m *mockRepo) Update(_ context.Context, rec *PatientRecord) error {
	if _, ok := m.records[rec.ID]; !ok {
		return ErrNotFound
	}
	rec.UpdatedAt = time.Now().UTC()
	m.records[rec.ID] = rec
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.records[id]; !ok {
		return ErrNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *mockRepo) List(_ context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	var recs []*PatientRecord
	for _, rec := range m.records {
		recs = append(recs, rec)
	}
	return recs, len(recs), nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientRef string, limit, offset int) ([]*PatientRecord, int, error) {
	var recs []*PatientRecord
	for _, rec := range m.records {
		if rec.PatientRef == patientRef {
			recs = append(recs, rec)
		}
	}
	return recs, len(recs), nil
}

type failingProvider struct{}

func (failingProvider) Name() string { return "fake" }

func (failingProvider) Rationale(context.Context, ai.RationaleRequest) (string, error) {
	return "", errors.New("model offline")
}

func (failingProvider) Rephrase(context.Context, string) (string, error) {
	return "", errors.New("model offline")
}

func newTestService(t *testing.T, provider ai.Provider) (*Service, *mockRepo) {
	t.Helper()
	repo := newMockRepo()
	idx := newTestIndex(t)
	var augmentor *ai.Augmentor
	if provider != nil {
		augmentor = ai.NewAugmentor(provider, time.Second, zerolog.Nop())
	}
	return NewService(repo, idx, augmentor, 0.0), repo
}

func fallsAssessment() assessment.RawAssessment {
	return assessment.RawAssessment{Fields: []assessment.Field{
		{Name: "gait", Value: "unsteady gait"},
		{Name: "vision", Value: "poor vision"},
	}}
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "patient-001")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.Review.Status != StatusDraft || rec.Version != 1 {
		t.Errorf("unexpected fresh record: %+v", rec)
	}

	got, err := svc.GetRecord(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != rec.ID {
		t.Errorf("got wrong record: %s", got.ID)
	}

	if _, err := svc.CreateRecord(ctx, ""); err == nil {
		t.Error("expected error for empty patient_ref")
	}
}

func TestService_AttachAssessment(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, "patient-001")

	raw := fallsAssessment()
	raw.Fields = append(raw.Fields, assessment.Field{Name: "astrology", Value: "mercury retrograde"})

	got, fieldErrs, err := svc.AttachAssessment(ctx, rec.ID, raw)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if len(fieldErrs) != 1 {
		t.Errorf("expected 1 field error, got %v", fieldErrs)
	}
	if got.Assessment == nil || len(got.Assessment.Observations) != 2 {
		t.Fatalf("observations not stored: %+v", got.Assessment)
	}
}

func TestService_CandidatesRequireAssessment(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, "patient-001")

	if _, err := svc.Candidates(ctx, rec.ID); !errors.Is(err, ErrNoAssessment) {
		t.Fatalf("expected ErrNoAssessment, got %v", err)
	}
}

func TestService_AcceptUnknownDiagnosis(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, "patient-001")

	if _, err := svc.AcceptDiagnoses(ctx, rec.ID, []string{"Nonexistent"}); !errors.Is(err, taxonomy.ErrNotFound) {
		t.Fatalf("expected wrapped ErrNotFound, got %v", err)
	}
}

func TestService_EndToEnd(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "patient-001")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.AttachAssessment(ctx, rec.ID, fallsAssessment()); err != nil {
		t.Fatalf("attach: %v", err)
	}

	candidates, err := svc.Candidates(ctx, rec.ID)
	if err != nil {
		t.Fatalf("candidates: %v", err)
	}
	if len(candidates) == 0 || candidates[0].TaxonomyID != "RiskOfFalls" {
		t.Fatalf("expected RiskOfFalls candidate, got %+v", candidates)
	}

	if _, err := svc.AcceptDiagnoses(ctx, rec.ID, []string{"RiskOfFalls"}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	got, warnings, err := svc.GeneratePlan(ctx, rec.ID, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(got.Plan) != 1 || got.Plan[0].Goal != "Patient remains fall-free" {
		t.Fatalf("unexpected plan: %+v", got.Plan)
	}

	if _, err := svc.Transition(ctx, rec.ID, StatusSubmitted, "nurse-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.Transition(ctx, rec.ID, StatusReviewed, "reviewer-1"); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := svc.Transition(ctx, rec.ID, StatusFinalized, "reviewer-1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Finalized records reject every mutation.
	var locked *LockedError
	if _, _, err := svc.AttachAssessment(ctx, rec.ID, fallsAssessment()); !errors.As(err, &locked) {
		t.Errorf("expected LockedError for assessment, got %v", err)
	}
	if _, _, err := svc.GeneratePlan(ctx, rec.ID, false); !errors.As(err, &locked) {
		t.Errorf("expected LockedError for plan, got %v", err)
	}
	var invalid *InvalidTransitionError
	if _, err := svc.Transition(ctx, rec.ID, StatusDraft, "nurse-1"); !errors.As(err, &invalid) {
		t.Errorf("expected InvalidTransitionError, got %v", err)
	}

	next, err := svc.NewVersion(ctx, rec.ID)
	if err != nil {
		t.Fatalf("new version: %v", err)
	}
	if next.Version != 2 || next.Review.Status != StatusDraft {
		t.Errorf("unexpected clone: %+v", next)
	}
	if _, err := svc.GetRecord(ctx, next.ID); err != nil {
		t.Errorf("clone not persisted: %v", err)
	}
}

func TestService_AssessmentLockedAfterSubmit(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, _ := svc.CreateRecord(ctx, "patient-001")
	svc.AttachAssessment(ctx, rec.ID, fallsAssessment())
	svc.AcceptDiagnoses(ctx, rec.ID, []string{"RiskOfFalls"})
	svc.GeneratePlan(ctx, rec.ID, false)
	if _, err := svc.Transition(ctx, rec.ID, StatusSubmitted, "nurse-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	var locked *LockedError
	if _, _, err := svc.AttachAssessment(ctx, rec.ID, fallsAssessment()); !errors.As(err, &locked) {
		t.Errorf("expected LockedError, got %v", err)
	}
	if _, err := svc.AcceptDiagnoses(ctx, rec.ID, []string{"AcutePain"}); !errors.As(err, &locked) {
		t.Errorf("expected LockedError, got %v", err)
	}

	// The plan stays editable while submitted.
	if _, _, err := svc.GeneratePlan(ctx, rec.ID, false); err != nil {
		t.Errorf("plan should stay editable while submitted: %v", err)
	}
}

func TestService_OverrideSurvivesRegeneration(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	rec, _ := svc.CreateRecord(ctx, "patient-001")
	svc.AttachAssessment(ctx, rec.ID, fallsAssessment())
	svc.AcceptDiagnoses(ctx, rec.ID, []string{"RiskOfFalls"})
	got, _, err := svc.GeneratePlan(ctx, rec.ID, false)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	itemID := got.Plan[0].ID
	got, err = svc.OverrideItem(ctx, rec.ID, itemID, "", []string{"Hourly rounding"})
	if err != nil {
		t.Fatalf("override: %v", err)
	}
	if !got.Plan[0].Overridden || got.Plan[0].Source != careplan.SourceNurse {
		t.Fatalf("override not applied: %+v", got.Plan[0])
	}
	overridden := got.Plan[0]

	got, _, err = svc.GeneratePlan(ctx, rec.ID, false)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	found := false
	for _, item := range got.Plan {
		if item.ID == itemID {
			found = true
			if !reflect.DeepEqual(item, overridden) {
				t.Errorf("override changed by regeneration: %+v", item)
			}
		}
	}
	if !found {
		t.Error("overridden item missing after regeneration")
	}
}

func TestService_OverrideItemNotFound(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()
	rec, _ := svc.CreateRecord(ctx, "patient-001")

	if _, err := svc.OverrideItem(ctx, rec.ID, uuid.New(), "goal", nil); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestService_AugmentFailureDegradesToTaxonomyPlan(t *testing.T) {
	svc, _ := newTestService(t, failingProvider{})
	ctx := context.Background()

	rec, _ := svc.CreateRecord(ctx, "patient-001")
	svc.AttachAssessment(ctx, rec.ID, fallsAssessment())
	svc.AcceptDiagnoses(ctx, rec.ID, []string{"RiskOfFalls"})

	got, _, err := svc.GeneratePlan(ctx, rec.ID, true)
	if err != nil {
		t.Fatalf("generation must succeed despite provider failure: %v", err)
	}
	if len(got.Plan) != 1 {
		t.Fatalf("unexpected plan: %+v", got.Plan)
	}
	item := got.Plan[0]
	if item.Source != careplan.SourceTaxonomy || item.Rationale != "" {
		t.Errorf("failed augmentation must leave the taxonomy item untouched: %+v", item)
	}
	if !reflect.DeepEqual(item.Interventions, []string{"Install bed alarm"}) {
		t.Errorf("interventions changed: %v", item.Interventions)
	}
}
