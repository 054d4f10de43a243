package ai

import "context"

// NullProvider is the deterministic fallback: text comes back unchanged,
// rationale stays empty, and nothing ever errors.
type NullProvider struct{}

func (NullProvider) Name() string { return "none" }

func (NullProvider) Rationale(context.Context, RationaleRequest) (string, error) {
	return "", nil
}

func (NullProvider) Rephrase(_ context.Context, text string) (string, error) {
	return text, nil
}
