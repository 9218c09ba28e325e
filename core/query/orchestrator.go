package query

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/geoalert/core/language"
	"github.com/siherrmann/geoalert/core/pipeline"
	"github.com/siherrmann/geoalert/core/retrieval"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/siherrmann/geoalert/core/query"

// Stage names as they appear in reports and spans.
const (
	StageDetectLanguage = "detect_language"
	StageEmbed          = "embed"
	StageRetrieve       = "retrieve"
	StageFetchAlerts    = "fetch_alerts"
	StageGenerate       = "generate"
)

// ErrEmptyQuery is returned for a query that is empty after trimming.
var ErrEmptyQuery = errors.New("query must not be empty")

// Orchestrator runs a query through detection, embedding, retrieval,
// resolution, aggregation and generation.
type Orchestrator struct {
	detector *language.Detector
	pipeline *pipeline.Pipeline
	engine   *retrieval.Engine
	policy   retrieval.ResolutionPolicy
	tracer   trace.Tracer
	logger   *slog.Logger
}

// NewOrchestrator creates an orchestrator. A nil policy resolves to the top match.
func NewOrchestrator(detector *language.Detector, p *pipeline.Pipeline, engine *retrieval.Engine, policy retrieval.ResolutionPolicy, logger *slog.Logger) *Orchestrator {
	if policy == nil {
		policy = retrieval.NewTopOneResolution()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		detector: detector,
		pipeline: p,
		engine:   engine,
		policy:   policy,
		tracer:   otel.Tracer(tracerName),
		logger:   logger,
	}
}

// HandleQuery answers request. The only returned error is ErrEmptyQuery,
// every other failure degrades into a well-formed response.
func (o *Orchestrator) HandleQuery(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error) {
	text := request.Text()
	if text == "" {
		return nil, helper.NewError("handle query", ErrEmptyQuery)
	}
	config := request.Config()

	report := &model.QueryReport{RequestID: uuid.NewString()}
	ctx, span := o.tracer.Start(ctx, "query", trace.WithAttributes(
		attribute.String("request_id", report.RequestID),
		attribute.Int("k", config.TopK),
		attribute.Float64("score_threshold", config.SimilarityThreshold),
	))
	defer span.End()

	lang := runStage(ctx, o, report, StageDetectLanguage, func(ctx context.Context) model.Outcome[model.Language] {
		return o.detector.DetectWithOutcome(request.Query)
	}).Value
	report.Language = lang

	vector := runStage(ctx, o, report, StageEmbed, func(ctx context.Context) model.Outcome[[]float32] {
		return o.pipeline.Embedder.Embed(ctx, request.Query)
	}).Value

	matches := runStage(ctx, o, report, StageRetrieve, func(ctx context.Context) model.Outcome[[]*model.LocationMatch] {
		return o.engine.Retrieve(ctx, vector, config.TopK, config.SimilarityThreshold)
	}).Value

	prompts := o.pipeline.Generator.Prompts()
	response := &model.QueryResponse{Sources: []model.Source{}, Report: report}

	match, ok := o.policy.Resolve(matches)
	if !ok {
		report.Branch = model.BranchNoMatch
		response.Answer = prompts.NoResults.For(lang)
		return o.finish(span, response), nil
	}

	source := model.NewSource(match)
	response.Sources = []model.Source{source}
	response.Confidence = source.Score

	records := runStage(ctx, o, report, StageFetchAlerts, func(ctx context.Context) model.Outcome[[]*model.AlertRecord] {
		return o.engine.FetchAlerts(ctx, match.Kind, match.ID)
	}).Value

	if len(records) == 0 {
		report.Branch = model.BranchNoAlerts
		response.Answer = prompts.NoAlerts.For(lang)
		return o.finish(span, response), nil
	}

	response.Answer = runStage(ctx, o, report, StageGenerate, func(ctx context.Context) model.Outcome[string] {
		return o.pipeline.Generator.Generate(ctx, text, records, lang)
	}).Value
	report.Branch = model.BranchAnswered

	return o.finish(span, response), nil
}

func (o *Orchestrator) finish(span trace.Span, response *model.QueryResponse) *model.QueryResponse {
	report := response.Report
	span.SetAttributes(
		attribute.String("language", string(report.Language)),
		attribute.String("branch", string(report.Branch)),
		attribute.Bool("degraded", report.Degraded()),
		attribute.Int("sources", len(response.Sources)),
	)

	o.logger.Info(
		"Query answered",
		slog.String("request_id", report.RequestID),
		slog.String("language", string(report.Language)),
		slog.String("branch", string(report.Branch)),
		slog.Bool("degraded", report.Degraded()),
		slog.Float64("confidence", response.Confidence),
	)
	return response
}

// runStage runs fn in its own span and appends its result to report.
func runStage[T any](ctx context.Context, o *Orchestrator, report *model.QueryReport, name string, fn func(context.Context) model.Outcome[T]) model.Outcome[T] {
	ctx, span := o.tracer.Start(ctx, name)
	defer span.End()

	start := time.Now()
	outcome := fn(ctx)

	stage := model.StageReport{
		Name:     name,
		Status:   outcome.Status,
		Duration: time.Since(start),
	}
	span.SetAttributes(attribute.String("status", string(outcome.Status)))
	if outcome.Err != nil {
		stage.Error = outcome.Err.Error()
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Err.Error())
		o.logger.Warn(
			"Query stage did not succeed",
			slog.String("request_id", report.RequestID),
			slog.String("stage", name),
			slog.String("status", string(outcome.Status)),
			slog.String("error", outcome.Err.Error()),
		)
	}
	report.Stages = append(report.Stages, stage)

	return outcome
}
