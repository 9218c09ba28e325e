package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knights-analytics/hugot"
	"github.com/openai/openai-go/v3"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	"golang.org/x/time/rate"
)

// MaxEmbedRunes is the maximum length of text sent to the embedding model.
const MaxEmbedRunes = 8192

// LocalEmbeddingDimension is the dimension of the DefaultEmbedder model.
const LocalEmbeddingDimension = 384

// NewUpstreamLimiter creates the limiter shared by all calls to the model provider.
func NewUpstreamLimiter(perSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// OpenAIEmbedder creates an embedder calling the OpenAI embeddings endpoint.
// Each call waits for the limiter first. The client should not retry on its own.
func OpenAIEmbedder(client openai.Client, embeddingModel string, limiter *rate.Limiter) EmbedFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: []string{text},
			},
			Model: openai.EmbeddingModel(embeddingModel),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		raw := resp.Data[0].Embedding
		embedding := make([]float32, len(raw))
		for i, v := range raw {
			embedding[i] = float32(v)
		}
		return embedding, nil
	}
}

// DefaultEmbedder creates an embedder using a local sentence transformer model
// Uses the all-MiniLM-L6-v2 model which produces 384-dimensional embeddings
func DefaultEmbedder() (EmbedFunc, error) {
	modelName := "sentence-transformers/all-MiniLM-L6-v2"
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return func(ctx context.Context, text string) ([]float32, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := sentencePipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}, nil
}

// Embedder turns text into a fixed-length vector. It never fails:
// empty text and upstream failures yield the zero vector.
type Embedder struct {
	embed     EmbedFunc
	cache     *EmbeddingCache
	dimension int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewEmbedder creates an embedding provider around embed.
// A nil cache disables caching, a non-positive timeout disables the per-call timeout.
func NewEmbedder(embed EmbedFunc, cache *EmbeddingCache, dimension int, timeout time.Duration, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{
		embed:     embed,
		cache:     cache,
		dimension: dimension,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dimension returns the length of every vector the embedder returns.
func (e *Embedder) Dimension() int {
	return e.dimension
}

// Upstream returns the uncached embedding function.
func (e *Embedder) Upstream() EmbedFunc {
	return e.embed
}

// Embed returns the embedding of text.
// The outcome is degraded with a zero vector if the upstream call failed.
func (e *Embedder) Embed(ctx context.Context, text string) model.Outcome[[]float32] {
	key := CacheKey(text)
	if e.cache != nil {
		if vector, ok := e.cache.Get(key); ok {
			return model.NewSuccess(vector)
		}
	}

	prepared := PrepareText(text)
	if prepared == "" {
		return model.NewSuccess(model.ZeroVector(e.dimension))
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	vector, err := e.embed(ctx, prepared)
	if err == nil && len(vector) != e.dimension {
		err = fmt.Errorf("expected embedding of dimension %d, got %d", e.dimension, len(vector))
	}
	if err != nil {
		err = helper.NewError("embed", err)
		e.logger.Warn("Embedding failed, using zero vector", slog.String("error", err.Error()))
		return model.NewDegraded(model.ZeroVector(e.dimension), err)
	}

	if e.cache != nil {
		e.cache.Set(key, vector)
	}

	return model.NewSuccess(vector)
}

// PrepareText trims text and truncates it to MaxEmbedRunes runes.
func PrepareText(text string) string {
	text = strings.TrimSpace(text)
	count := 0
	for i := range text {
		if count == MaxEmbedRunes {
			return text[:i]
		}
		count++
	}
	return text
}
