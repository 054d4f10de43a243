package ai

import "context"

// RationaleRequest carries the plan context a provider needs to write a
// short free-text rationale for one care-plan item.
type RationaleRequest struct {
	DiagnosisLabel string
	Goal           string
	Interventions  []string
	Observations   []string
}

// Provider is the augmentation capability set. The two implementations
// are the live local-model client and the null provider; which one runs
// is decided by configuration, never detected at runtime.
type Provider interface {
	Name() string
	Rationale(ctx context.Context, req RationaleRequest) (string, error)
	Rephrase(ctx context.Context, text string) (string, error)
}
