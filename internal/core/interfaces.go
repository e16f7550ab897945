// ABOUTME: Shared interfaces for the external collaborators of the memory core
// ABOUTME: LLM, embedder, and generator are injected so tests can run offline
package core

import "context"

// LLMClient issues single-prompt completions. QueryJSON requests strict JSON
// output from models that support it.
type LLMClient interface {
	Query(ctx context.Context, prompt string) (string, error)
	QueryJSON(ctx context.Context, prompt string) (string, error)
}

// Embedder converts text into vector embeddings.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Generator is the downstream model that composes the final user-facing reply
// from the hydrated prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLMGenerator adapts an LLMClient into a Generator.
type LLMGenerator struct {
	Client LLMClient
}

// Generate sends the hydrated prompt to the chat model.
func (g *LLMGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.Client.Query(ctx, prompt)
}
