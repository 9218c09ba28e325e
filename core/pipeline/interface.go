package pipeline

import "context"

// EmbedFunc generates the embedding of already prepared text.
// Any error is treated as an upstream failure.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

// ChatFunc sends a system and a user message to a generative model and returns its reply.
type ChatFunc func(ctx context.Context, request ChatRequest) (string, error)

// ChatRequest is a single constrained completion request
type ChatRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Pipeline combines the embedding provider and the answer generator
type Pipeline struct {
	Embedder  *Embedder
	Generator *AnswerGenerator
}

// NewPipeline creates a new query pipeline
func NewPipeline(embedder *Embedder, generator *AnswerGenerator) *Pipeline {
	return &Pipeline{
		Embedder:  embedder,
		Generator: generator,
	}
}
