package ai

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/carenote/carenote/internal/config"
	"github.com/carenote/carenote/internal/domain/careplan"
)

// PlanContext is the assessment context handed to the provider when
// augmenting a plan item.
type PlanContext struct {
	DiagnosisLabel string
	Observations   []string
}

// Augmentor runs the optional enrichment step over taxonomy-derived
// plan items. Any provider error or timeout degrades to the item as it
// came in; augmentation can be skipped, never fail the plan.
type Augmentor struct {
	provider Provider
	timeout  time.Duration
	log      zerolog.Logger
}

func NewAugmentor(provider Provider, timeout time.Duration, log zerolog.Logger) *Augmentor {
	return &Augmentor{provider: provider, timeout: timeout, log: log}
}

// NewProviderFromConfig maps the configured provider name to an
// implementation. Validation has already rejected unknown names.
func NewProviderFromConfig(cfg *config.Config) Provider {
	if cfg.AIProvider == config.AIProviderLocalModel {
		return NewOllamaProvider(cfg.AIBaseURL, cfg.AIModel)
	}
	return NullProvider{}
}

// Augment enriches a single item with a rationale and rephrased
// interventions. Overridden and nurse-authored items are returned
// untouched; the provider must never write over a nurse's words.
// The diagnosis id, goal, and the number of interventions never change.
func (a *Augmentor) Augment(ctx context.Context, item careplan.Item, planCtx PlanContext) careplan.Item {
	if item.Overridden || item.Source == careplan.SourceNurse {
		return item
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rationale, err := a.provider.Rationale(ctx, RationaleRequest{
		DiagnosisLabel: planCtx.DiagnosisLabel,
		Goal:           item.Goal,
		Interventions:  item.Interventions,
		Observations:   planCtx.Observations,
	})
	if err != nil {
		a.log.Debug().Err(err).Str("provider", a.provider.Name()).
			Str("diagnosis_id", item.DiagnosisID).Msg("rationale skipped")
		return item
	}

	rephrased := make([]string, len(item.Interventions))
	for i, iv := range item.Interventions {
		out, err := a.provider.Rephrase(ctx, iv)
		if err != nil {
			a.log.Debug().Err(err).Str("provider", a.provider.Name()).
				Str("diagnosis_id", item.DiagnosisID).Msg("rephrase skipped")
			return item
		}
		rephrased[i] = out
	}

	if rationale == "" && equalStrings(rephrased, item.Interventions) {
		// Null behavior: nothing changed, keep the taxonomy tag.
		return item
	}

	item.Rationale = rationale
	item.Interventions = rephrased
	item.Source = careplan.SourceAI
	return item
}

// AugmentPlan applies Augment to every item, sharing one parent
// context so a stuck provider cannot hold plan generation hostage.
func (a *Augmentor) AugmentPlan(ctx context.Context, items []careplan.Item, contexts map[string]PlanContext) []careplan.Item {
	out := make([]careplan.Item, len(items))
	for i, item := range items {
		out[i] = a.Augment(ctx, item, contexts[item.DiagnosisID])
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
