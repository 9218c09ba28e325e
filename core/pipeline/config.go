package pipeline

import (
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/siherrmann/geoalert/helper"
)

// NewOpenAIClient creates a client for the configured provider.
// SDK retries are disabled, failures are handled by the degrade paths.
func NewOpenAIClient(config *helper.ServiceConfiguration) openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(config.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if config.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.OpenAIBaseURL))
	}
	return openai.NewClient(opts...)
}

// NewPipelineFromConfig wires embedder, cache, limiter and generator from config.
// With the local provider the embedding dimension is the one of the local model.
func NewPipelineFromConfig(config *helper.ServiceConfiguration, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	prompts, err := LoadPromptConfig(config.PromptsPath)
	if err != nil {
		return nil, helper.NewError("load prompts", err)
	}

	client := NewOpenAIClient(config)
	limiter := NewUpstreamLimiter(config.UpstreamRate, config.UpstreamBurst)

	var embed EmbedFunc
	dimension := config.EmbeddingDimension
	switch config.EmbeddingProvider {
	case helper.EmbeddingProviderLocal:
		embed, err = DefaultEmbedder()
		if err != nil {
			return nil, helper.NewError("create local embedder", err)
		}
		dimension = LocalEmbeddingDimension
	default:
		embed = OpenAIEmbedder(client, config.EmbeddingModel, limiter)
	}

	cache := NewEmbeddingCache(config.CacheTTL, config.CacheMaxEntries)
	embedder := NewEmbedder(embed, cache, dimension, config.EmbedTimeout, logger)
	generator := NewAnswerGenerator(OpenAIChat(client, config.ChatModel, limiter), prompts, config.ChatTimeout, logger)

	logger.Info(
		"Created query pipeline",
		slog.String("embedding_provider", config.EmbeddingProvider),
		slog.String("embedding_model", config.EmbeddingModel),
		slog.Int("embedding_dimension", dimension),
		slog.String("chat_model", config.ChatModel),
	)

	return NewPipeline(embedder, generator), nil
}
