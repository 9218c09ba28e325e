package database

import (
	"context"
	"fmt"
	"time"

	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	loadSql "github.com/siherrmann/geoalert/sql"
)

// RegionsDBHandlerFunctions defines the interface for Regions database operations.
type RegionsDBHandlerFunctions interface {
	UpsertRegion(ctx context.Context, exec Executor, region *model.Region) error
	SelectRegion(ctx context.Context, id string) (*model.Region, error)
	SelectRegionsBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error)
	DeleteRegion(ctx context.Context, id string) error
}

// RegionsDBHandler handles region-related database operations
type RegionsDBHandler struct {
	db *helper.Database
}

// NewRegionsDBHandler creates a new regions database handler.
// It loads the region SQL functions and creates the table with the given embedding dimension.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRegionsDBHandler(db *helper.Database, embeddingDim int, force bool) (*RegionsDBHandler, error) {
	if db == nil || db.Instance == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	regionsDbHandler := &RegionsDBHandler{
		db: db,
	}

	err := loadSql.LoadRegionsSql(regionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load regions sql", err)
	}

	err = regionsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RegionsDBHandler")

	return regionsDbHandler, nil
}

// CreateTable creates the 'regions' table and its vector index if they don't exist.
func (h *RegionsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_regions($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init regions", err)
	}

	h.db.Logger.Info("Checked/created table regions")

	return nil
}

// UpsertRegion inserts or updates a region. A nil exec uses the pool.
func (h *RegionsDBHandler) UpsertRegion(ctx context.Context, exec Executor, region *model.Region) error {
	if exec == nil {
		exec = h.db.Instance
	}

	_, err := exec.ExecContext(
		ctx,
		`SELECT upsert_region($1, $2, $3, $4);`,
		region.ID,
		region.NameAr,
		region.NameEn,
		vectorParam(region.Embedding),
	)
	if err != nil {
		return helper.NewError("upsert region", err)
	}

	return nil
}

// SelectRegion returns a single region without its embedding
func (h *RegionsDBHandler) SelectRegion(ctx context.Context, id string) (*model.Region, error) {
	region := &model.Region{}
	err := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_region($1);`, id).Scan(
		&region.ID,
		&region.NameAr,
		&region.NameEn,
		&region.UpdatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return region, nil
}

// SelectRegionsBySimilarity returns up to limit regions scoring at least threshold,
// best first.
func (h *RegionsDBHandler) SelectRegionsBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_regions_by_similarity($1, $2, $3);`,
		vectorParam(embedding),
		threshold,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	matches := []*model.LocationMatch{}
	for rows.Next() {
		match := &model.LocationMatch{Kind: model.EntityKindRegion}
		err := rows.Scan(&match.ID, &match.NameAr, &match.NameEn, &match.Score)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return matches, nil
}

// DeleteRegion deletes a region. Its governorates keep existing without region.
func (h *RegionsDBHandler) DeleteRegion(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_region($1);`, id)
	if err != nil {
		return helper.NewError("delete region", err)
	}
	return nil
}
