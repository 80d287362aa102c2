// Package llm wraps the single-turn, JSON-only LLM call pattern used by the
// narrative generator. Providers are constructed once with their credentials
// and injected; they never read ambient environment state.
package llm

import "context"

// Provider is the interface for all LLM backends: one system+user turn in,
// raw response text out. No streaming.
type Provider interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Model() string
}
