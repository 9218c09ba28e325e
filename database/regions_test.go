package database

import (
	"context"
	"testing"

	"github.com/siherrmann/geoalert/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionsNewRegionsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewRegionsDBHandler", func(t *testing.T) {
		regionsDbHandler, err := NewRegionsDBHandler(database, testEmbeddingDim, true)
		assert.NoError(t, err, "Expected NewRegionsDBHandler to not return an error")
		require.NotNil(t, regionsDbHandler, "Expected NewRegionsDBHandler to return a non-nil instance")
		require.NotNil(t, regionsDbHandler.db, "Expected NewRegionsDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewRegionsDBHandler with nil database", func(t *testing.T) {
		_, err := NewRegionsDBHandler(nil, testEmbeddingDim, false)
		assert.Error(t, err, "Expected error when creating RegionsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestRegionsUpsertAndSelect(t *testing.T) {
	database := initDB(t)
	h := initHandlers(t, database)
	ctx := context.Background()

	t.Run("Insert region", func(t *testing.T) {
		region := &model.Region{ID: "1", NameAr: "منطقة تبوك", NameEn: "Tabuk Region", Embedding: []float32{1, 0, 0}}
		err := h.regions.UpsertRegion(ctx, nil, region)
		require.NoError(t, err, "Expected UpsertRegion to not return an error")

		selected, err := h.regions.SelectRegion(ctx, "1")
		require.NoError(t, err, "Expected SelectRegion to not return an error")
		assert.Equal(t, "Tabuk Region", selected.NameEn)
		assert.Equal(t, "منطقة تبوك", selected.NameAr)
		assert.False(t, selected.UpdatedAt.IsZero(), "Expected updated_at to be set")
	})

	t.Run("Update region on conflict", func(t *testing.T) {
		region := &model.Region{ID: "1", NameAr: "تبوك", NameEn: "Tabuk", Embedding: []float32{1, 0, 0}}
		err := h.regions.UpsertRegion(ctx, nil, region)
		require.NoError(t, err, "Expected UpsertRegion to not return an error on conflict")

		selected, err := h.regions.SelectRegion(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, "Tabuk", selected.NameEn, "Expected name to be updated")
	})

	t.Run("Select missing region", func(t *testing.T) {
		_, err := h.regions.SelectRegion(ctx, "does-not-exist")
		assert.Error(t, err, "Expected error for missing region")
	})

	t.Run("Delete region", func(t *testing.T) {
		err := h.regions.UpsertRegion(ctx, nil, &model.Region{ID: "2", NameEn: "Riyadh"})
		require.NoError(t, err)

		err = h.regions.DeleteRegion(ctx, "2")
		assert.NoError(t, err)

		_, err = h.regions.SelectRegion(ctx, "2")
		assert.Error(t, err, "Expected deleted region to be gone")
	})
}

func TestRegionsSelectBySimilarity(t *testing.T) {
	database := initDB(t)
	h := initHandlers(t, database)
	ctx := context.Background()

	regions := []*model.Region{
		{ID: "r1", NameEn: "Exact", Embedding: []float32{1, 0, 0}},
		{ID: "r2", NameEn: "Close", Embedding: []float32{1, 0.2, 0}},
		{ID: "r3", NameEn: "Orthogonal", Embedding: []float32{0, 1, 0}},
		{ID: "r4", NameEn: "Zero", Embedding: []float32{0, 0, 0}},
		{ID: "r5", NameEn: "Missing"},
		{ID: "r0", NameEn: "Exact twin", Embedding: []float32{2, 0, 0}},
	}
	for _, r := range regions {
		require.NoError(t, h.regions.UpsertRegion(ctx, nil, r))
	}

	t.Run("Results are thresholded and sorted", func(t *testing.T) {
		matches, err := h.regions.SelectRegionsBySimilarity(ctx, []float32{1, 0, 0}, 10, 0.5)
		require.NoError(t, err, "Expected SelectRegionsBySimilarity to not return an error")
		require.Len(t, matches, 3, "Expected only regions above threshold")

		assert.Equal(t, "r0", matches[0].ID, "Expected ties broken by id")
		assert.Equal(t, "r1", matches[1].ID)
		assert.Equal(t, "r2", matches[2].ID)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score, "Expected descending scores")
		for _, m := range matches {
			assert.Equal(t, model.EntityKindRegion, m.Kind)
		}
	})

	t.Run("Limit bounds the result", func(t *testing.T) {
		matches, err := h.regions.SelectRegionsBySimilarity(ctx, []float32{1, 0, 0}, 1, 0)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("Zero vector rows never match", func(t *testing.T) {
		matches, err := h.regions.SelectRegionsBySimilarity(ctx, []float32{0, 0, 1}, 10, 0)
		require.NoError(t, err)
		for _, m := range matches {
			assert.NotEqual(t, "r4", m.ID, "Expected zero vector row to be excluded")
			assert.NotEqual(t, "r5", m.ID, "Expected row without embedding to be excluded")
		}
	})

	t.Run("Zero query vector matches nothing", func(t *testing.T) {
		matches, err := h.regions.SelectRegionsBySimilarity(ctx, []float32{0, 0, 0}, 10, 0)
		require.NoError(t, err)
		assert.Empty(t, matches)
	})

	t.Run("Dimension mismatch returns an error", func(t *testing.T) {
		_, err := h.regions.SelectRegionsBySimilarity(ctx, []float32{1, 0}, 10, 0)
		assert.Error(t, err, "Expected error for wrong dimension")
	})

	t.Run("Canceled context returns an error", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := h.regions.SelectRegionsBySimilarity(canceled, []float32{1, 0, 0}, 10, 0)
		assert.Error(t, err)
	})
}
