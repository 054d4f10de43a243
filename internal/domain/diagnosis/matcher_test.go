package diagnosis

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/carenote/carenote/internal/domain/assessment"
	"github.com/carenote/carenote/internal/domain/taxonomy"
)

const fixtureCSV = `id,label,defining_characteristics,related_factors,risk_factors,suggested_outcomes,suggested_interventions
RiskOfFalls,Risk for falls,unsteady gait;history of falls,poor vision,,Patient remains fall-free,Install bed alarm
ImpairedMobility,Impaired physical mobility,limited range of motion;unsteady gait,muscle weakness,prolonged bed rest,Patient ambulates with assistance,Assist with ambulation
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

func present(cat assessment.Category, token string, weight float64) assessment.Observation {
	return assessment.Observation{
		Category: cat,
		Token:    token,
		Polarity: assessment.PolarityPresent,
		Weight:   weight,
	}
}

// The worked example: one of two defining characteristics plus the only
// related factor gives (1/2)*0.6 + (1/1)*0.4 = 0.7.
func TestMatch_WorkedExample(t *testing.T) {
	idx := newTestIndex(t)
	obs := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
		present(assessment.CategoryFactor, "poor vision", 1.0),
	}

	candidates := Match(obs, idx, 0.0)
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	top := candidates[0]
	if top.TaxonomyID != "RiskOfFalls" {
		t.Fatalf("expected RiskOfFalls on top, got %s", top.TaxonomyID)
	}
	if math.Abs(top.Score-0.7) > 1e-9 {
		t.Errorf("expected score 0.7, got %g", top.Score)
	}
	if !reflect.DeepEqual(top.MatchedCharacteristics, []string{"unsteady gait"}) {
		t.Errorf("wrong matched characteristics: %v", top.MatchedCharacteristics)
	}
	if !reflect.DeepEqual(top.MatchedFactors, []string{"poor vision"}) {
		t.Errorf("wrong matched factors: %v", top.MatchedFactors)
	}
	if top.Rationale == "" {
		t.Error("expected human-readable rationale")
	}
}

func TestMatch_ZeroMatchEntriesExcluded(t *testing.T) {
	idx := newTestIndex(t)
	obs := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
	}

	for _, c := range Match(obs, idx, 0.0) {
		if c.TaxonomyID == "AcutePain" {
			t.Error("AcutePain has no matching observation and must be excluded")
		}
	}
}

func TestMatch_EmptyObservations(t *testing.T) {
	idx := newTestIndex(t)
	candidates := Match(nil, idx, 0.0)
	if len(candidates) != 0 {
		t.Errorf("expected empty result, got %v", candidates)
	}
}

func TestMatch_AbsentObservationsIgnored(t *testing.T) {
	idx := newTestIndex(t)
	obs := []assessment.Observation{
		{Category: assessment.CategoryCharacteristic, Token: "unsteady gait", Polarity: assessment.PolarityAbsent, Weight: 1.0},
	}
	if got := Match(obs, idx, 0.0); len(got) != 0 {
		t.Errorf("absent findings must not score, got %v", got)
	}
}

func TestMatch_FieldCountedOnce(t *testing.T) {
	idx := newTestIndex(t)
	once := Match([]assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
	}, idx, 0.0)
	twice := Match([]assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
		present(assessment.CategoryCharacteristic, "unsteady gait", 0.5),
	}, idx, 0.0)

	if once[0].Score != twice[0].Score {
		t.Errorf("duplicate observation changed score: %g vs %g", once[0].Score, twice[0].Score)
	}
}

func TestMatch_ThresholdFilters(t *testing.T) {
	idx := newTestIndex(t)
	obs := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 0.5),
	}

	// unsteady gait alone: RiskOfFalls scores (0.5/2)*0.6 = 0.15.
	if got := Match(obs, idx, 0.2); len(got) != 0 {
		t.Errorf("expected threshold to filter, got %v", got)
	}
	if got := Match(obs, idx, 0.1); len(got) == 0 {
		t.Error("expected candidates below-threshold filter to pass them")
	}
}

func TestMatch_Deterministic(t *testing.T) {
	idx := newTestIndex(t)
	obs := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
		present(assessment.CategoryFactor, "poor vision", 0.5),
		present(assessment.CategoryCharacteristic, "verbal report of pain", 0.5),
	}

	first := Match(obs, idx, 0.0)
	for i := 0; i < 10; i++ {
		if again := Match(obs, idx, 0.0); !reflect.DeepEqual(first, again) {
			t.Fatalf("ranking not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestMatch_TieBrokenByID(t *testing.T) {
	idx := newTestIndex(t)

	// "unsteady gait" is a characteristic of both RiskOfFalls and
	// ImpairedMobility; both have two characteristics, so a lone hit
	// with no factors ties their scores.
	obs := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
	}
	candidates := Match(obs, idx, 0.0)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].TaxonomyID != "ImpairedMobility" || candidates[1].TaxonomyID != "RiskOfFalls" {
		t.Errorf("tie not broken by ascending id: %s, %s",
			candidates[0].TaxonomyID, candidates[1].TaxonomyID)
	}
}

// Adding a matching observation for an entry never lowers its score or
// its rank relative to entries the observation does not touch.
func TestMatch_MonotonicScoring(t *testing.T) {
	idx := newTestIndex(t)
	base := []assessment.Observation{
		present(assessment.CategoryCharacteristic, "unsteady gait", 1.0),
	}
	more := append(append([]assessment.Observation{}, base...),
		present(assessment.CategoryFactor, "poor vision", 1.0))

	scoreOf := func(cands []Candidate, id string) (float64, int) {
		for rank, c := range cands {
			if c.TaxonomyID == id {
				return c.Score, rank
			}
		}
		return 0, len(cands)
	}

	before := Match(base, idx, 0.0)
	after := Match(more, idx, 0.0)

	sBefore, rBefore := scoreOf(before, "RiskOfFalls")
	sAfter, rAfter := scoreOf(after, "RiskOfFalls")
	if sAfter < sBefore {
		t.Errorf("score decreased: %g -> %g", sBefore, sAfter)
	}
	if rAfter > rBefore {
		t.Errorf("rank worsened: %d -> %d", rBefore, rAfter)
	}
}
