package ai

import "context"

// Provider sends a prompt to an LLM and returns the raw text response.
// Used only by Client; not exported to the rest of the system.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NopProvider is used when ai.enabled is false. It never answers.
type NopProvider struct{}

// NewNopProvider returns a NopProvider.
func NewNopProvider() *NopProvider {
	return &NopProvider{}
}

// Complete always reports the provider as unavailable.
func (n *NopProvider) Complete(_ context.Context, _ string) (string, error) {
	return "", ErrDisabled
}
