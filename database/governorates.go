package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	loadSql "github.com/siherrmann/geoalert/sql"
)

// GovernoratesDBHandlerFunctions defines the interface for Governorates database operations.
type GovernoratesDBHandlerFunctions interface {
	UpsertGovernorate(ctx context.Context, exec Executor, governorate *model.Governorate) error
	SelectGovernorate(ctx context.Context, id string) (*model.Governorate, error)
	SelectGovernoratesByRegion(ctx context.Context, regionID string) ([]*model.Governorate, error)
	SelectGovernoratesBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error)
	DeleteGovernorate(ctx context.Context, id string) error
}

// GovernoratesDBHandler handles governorate-related database operations
type GovernoratesDBHandler struct {
	db *helper.Database
}

// NewGovernoratesDBHandler creates a new governorates database handler.
// The regions table has to exist already.
func NewGovernoratesDBHandler(db *helper.Database, embeddingDim int, force bool) (*GovernoratesDBHandler, error) {
	if db == nil || db.Instance == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	governoratesDbHandler := &GovernoratesDBHandler{
		db: db,
	}

	err := loadSql.LoadGovernoratesSql(governoratesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load governorates sql", err)
	}

	err = governoratesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized GovernoratesDBHandler")

	return governoratesDbHandler, nil
}

// CreateTable creates the 'governorates' table and its indexes if they don't exist.
func (h *GovernoratesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_governorates($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init governorates", err)
	}

	h.db.Logger.Info("Checked/created table governorates")

	return nil
}

// UpsertGovernorate inserts or updates a governorate. A nil exec uses the pool.
func (h *GovernoratesDBHandler) UpsertGovernorate(ctx context.Context, exec Executor, governorate *model.Governorate) error {
	if exec == nil {
		exec = h.db.Instance
	}

	var regionID sql.NullString
	if governorate.RegionID != "" {
		regionID = sql.NullString{String: governorate.RegionID, Valid: true}
	}

	_, err := exec.ExecContext(
		ctx,
		`SELECT upsert_governorate($1, $2, $3, $4, $5, $6, $7);`,
		governorate.ID,
		regionID,
		governorate.NameAr,
		governorate.NameEn,
		governorate.Latitude,
		governorate.Longitude,
		vectorParam(governorate.Embedding),
	)
	if err != nil {
		return helper.NewError("upsert governorate", err)
	}

	return nil
}

// SelectGovernorate returns a single governorate without its embedding
func (h *GovernoratesDBHandler) SelectGovernorate(ctx context.Context, id string) (*model.Governorate, error) {
	row := h.db.Instance.QueryRowContext(ctx, `SELECT * FROM select_governorate($1);`, id)

	governorate, err := scanGovernorate(row)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return governorate, nil
}

// SelectGovernoratesByRegion returns all governorates of a region ordered by id
func (h *GovernoratesDBHandler) SelectGovernoratesByRegion(ctx context.Context, regionID string) ([]*model.Governorate, error) {
	rows, err := h.db.Instance.QueryContext(ctx, `SELECT * FROM select_governorates_by_region($1);`, regionID)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	governorates := []*model.Governorate{}
	for rows.Next() {
		governorate, err := scanGovernorate(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		governorates = append(governorates, governorate)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return governorates, nil
}

// SelectGovernoratesBySimilarity returns up to limit governorates scoring at least
// threshold, best first.
func (h *GovernoratesDBHandler) SelectGovernoratesBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_governorates_by_similarity($1, $2, $3);`,
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
		match := &model.LocationMatch{Kind: model.EntityKindGovernorate}
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

// DeleteGovernorate deletes a governorate and its alert links.
func (h *GovernoratesDBHandler) DeleteGovernorate(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_governorate($1);`, id)
	if err != nil {
		return helper.NewError("delete governorate", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGovernorate(row scanner) (*model.Governorate, error) {
	governorate := &model.Governorate{}
	var regionID sql.NullString
	var latitude, longitude sql.NullFloat64

	err := row.Scan(
		&governorate.ID,
		&regionID,
		&governorate.NameAr,
		&governorate.NameEn,
		&latitude,
		&longitude,
		&governorate.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	governorate.RegionID = regionID.String
	if latitude.Valid {
		governorate.Latitude = &latitude.Float64
	}
	if longitude.Valid {
		governorate.Longitude = &longitude.Float64
	}

	return governorate, nil
}
