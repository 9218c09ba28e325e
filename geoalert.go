package geoalert

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siherrmann/geoalert/core/language"
	"github.com/siherrmann/geoalert/core/pipeline"
	"github.com/siherrmann/geoalert/core/query"
	"github.com/siherrmann/geoalert/core/retrieval"
	"github.com/siherrmann/geoalert/database"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/loader"
	"github.com/siherrmann/geoalert/model"
	loadSql "github.com/siherrmann/geoalert/sql"
)

// GeoAlert owns the database handle and wires handlers, pipeline and query orchestration
type GeoAlert struct {
	DB           *helper.Database
	Regions      *database.RegionsDBHandler
	Governorates *database.GovernoratesDBHandler
	Alerts       *database.AlertsDBHandler
	Pipeline     *pipeline.Pipeline
	Engine       *retrieval.Engine
	Orchestrator *query.Orchestrator
	// Logging
	log *slog.Logger
}

// NewGeoAlert creates a GeoAlert with the pipeline described by serviceConfig.
func NewGeoAlert(dbConfig *helper.DatabaseConfiguration, serviceConfig *helper.ServiceConfiguration, logger *slog.Logger) (*GeoAlert, error) {
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, serviceConfig.LogLevel)
	}

	p, err := pipeline.NewPipelineFromConfig(serviceConfig, logger)
	if err != nil {
		return nil, helper.NewError("create pipeline", err)
	}

	return NewGeoAlertWithPipeline(dbConfig, p, logger)
}

// NewGeoAlertWithPipeline creates a GeoAlert around an existing pipeline.
// The tables are created with the embedding dimension of the pipeline.
func NewGeoAlertWithPipeline(dbConfig *helper.DatabaseConfiguration, p *pipeline.Pipeline, logger *slog.Logger) (*GeoAlert, error) {
	if p == nil || p.Embedder == nil || p.Generator == nil {
		return nil, helper.NewError("create geoalert", fmt.Errorf("pipeline with embedder and generator is required"))
	}
	if logger == nil {
		logger = helper.NewLogger(os.Stdout, "info")
	}

	db, err := helper.NewDatabase("geoalert", dbConfig, logger)
	if err != nil {
		return nil, helper.NewError("create database", err)
	}
	err = loadSql.Init(db.Instance)
	if err != nil {
		db.Close()
		return nil, helper.NewError("initialize database extensions", err)
	}

	// force=false to not reload if functions already exist
	dimension := p.Embedder.Dimension()
	regions, err := database.NewRegionsDBHandler(db, dimension, false)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create regions handler", err)
	}

	governorates, err := database.NewGovernoratesDBHandler(db, dimension, false)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create governorates handler", err)
	}

	alerts, err := database.NewAlertsDBHandler(db, dimension, false)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create alerts handler", err)
	}

	engine := retrieval.NewEngine(regions, governorates, alerts, logger)
	orchestrator := query.NewOrchestrator(language.NewDetector(), p, engine, retrieval.NewTopOneResolution(), logger)

	return &GeoAlert{
		DB:           db,
		Regions:      regions,
		Governorates: governorates,
		Alerts:       alerts,
		Pipeline:     p,
		Engine:       engine,
		Orchestrator: orchestrator,
		log:          logger,
	}, nil
}

// Close closes the database connection
func (g *GeoAlert) Close() error {
	if g.DB != nil {
		return g.DB.Close()
	}
	return nil
}

// Query answers a natural language alert query.
// Only an empty query returns an error (query.ErrEmptyQuery).
func (g *GeoAlert) Query(ctx context.Context, request model.QueryRequest) (*model.QueryResponse, error) {
	if g.Orchestrator == nil {
		return nil, helper.NewError("query", fmt.Errorf("orchestrator not initialized"))
	}
	return g.Orchestrator.HandleQuery(ctx, request)
}

// Health checks the database round-trip.
func (g *GeoAlert) Health(ctx context.Context) error {
	return g.DB.Health(ctx)
}

// ChangeIndexType changes the vector index of regions or governorates between HNSW and IVFFlat
func (g *GeoAlert) ChangeIndexType(ctx context.Context, kind model.EntityKind, indexType string, params map[string]interface{}) error {
	return database.ChangeIndexType(ctx, g.DB, kind, indexType, params)
}

// NewLoader creates a feed loader writing through the handlers of g
// and embedding with the upstream of its pipeline.
func (g *GeoAlert) NewLoader() *loader.Loader {
	return loader.NewLoader(g.DB, g.Regions, g.Governorates, g.Alerts, g.Pipeline.Embedder.Upstream(), g.Pipeline.Embedder.Dimension(), g.log)
}
