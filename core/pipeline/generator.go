package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	"golang.org/x/time/rate"
)

// OpenAIChat creates a chat function calling the OpenAI chat completions endpoint.
func OpenAIChat(client openai.Client, chatModel string, limiter *rate.Limiter) ChatFunc {
	return func(ctx context.Context, request ChatRequest) (string, error) {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(request.System),
				openai.UserMessage(request.User),
			},
			Model:       openai.ChatModel(chatModel),
			Temperature: openai.Float(request.Temperature),
			MaxTokens:   openai.Int(int64(request.MaxTokens)),
		})
		if err != nil {
			return "", fmt.Errorf("chat completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}

		return resp.Choices[0].Message.Content, nil
	}
}

// AnswerGenerator turns alert records into a short, fact-constrained answer.
type AnswerGenerator struct {
	chat    ChatFunc
	prompts PromptConfig
	timeout time.Duration
	logger  *slog.Logger
}

// NewAnswerGenerator creates an answer generator around chat.
func NewAnswerGenerator(chat ChatFunc, prompts PromptConfig, timeout time.Duration, logger *slog.Logger) *AnswerGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerGenerator{
		chat:    chat,
		prompts: prompts,
		timeout: timeout,
		logger:  logger,
	}
}

// Prompts returns the prompt configuration of the generator.
func (g *AnswerGenerator) Prompts() PromptConfig {
	return g.prompts
}

// Generate answers query from records in lang.
// On failure the outcome is degraded and holds the localized error message.
func (g *AnswerGenerator) Generate(ctx context.Context, query string, records []*model.AlertRecord, lang model.Language) model.Outcome[string] {
	fallback := g.prompts.GenerationError.For(lang)

	userMessage, err := BuildUserMessage(query, records, lang)
	if err != nil {
		return g.degrade(fallback, helper.NewError("build user message", err))
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	answer, err := g.chat(ctx, ChatRequest{
		System:      g.prompts.SystemPrompt.For(lang),
		User:        userMessage,
		Temperature: g.prompts.Temperature,
		MaxTokens:   g.prompts.MaxTokens,
	})
	if err != nil {
		return g.degrade(fallback, helper.NewError("generate", err))
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return g.degrade(fallback, helper.NewError("generate", fmt.Errorf("empty answer")))
	}

	return model.NewSuccess(answer)
}

func (g *AnswerGenerator) degrade(fallback string, err error) model.Outcome[string] {
	g.logger.Error("Answer generation failed", slog.String("error", err.Error()))
	return model.NewDegraded(fallback, err)
}

// BuildUserMessage renders the query and the per-language projection of records.
func BuildUserMessage(query string, records []*model.AlertRecord, lang model.Language) (string, error) {
	summaries := make([]model.AlertSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, r.Summary(lang))
	}

	data, err := json.Marshal(summaries)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Query: %s\nData: %s", query, data), nil
}
