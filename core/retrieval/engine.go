package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	"golang.org/x/sync/errgroup"
)

// RegionsDB scores regions against a query vector.
type RegionsDB interface {
	SelectRegionsBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error)
}

// GovernoratesDB scores governorates against a query vector.
type GovernoratesDB interface {
	SelectGovernoratesBySimilarity(ctx context.Context, embedding []float32, limit int, threshold float64) ([]*model.LocationMatch, error)
}

// AlertsDB loads the alert records of a resolved entity.
type AlertsDB interface {
	SelectAlertsByRegion(ctx context.Context, regionID string) ([]*model.AlertRecord, error)
	SelectAlertsByGovernorate(ctx context.Context, governorateID string) ([]*model.AlertRecord, error)
}

// Engine ranks regions and governorates by similarity and aggregates their alerts.
// It is the degrade boundary for data access: errors never leave it.
type Engine struct {
	regions      RegionsDB
	governorates GovernoratesDB
	alerts       AlertsDB
	logger       *slog.Logger
}

// NewEngine creates a new retrieval engine
func NewEngine(regions RegionsDB, governorates GovernoratesDB, alerts AlertsDB, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		regions:      regions,
		governorates: governorates,
		alerts:       alerts,
		logger:       logger,
	}
}

// Retrieve returns at most k locations with a score of at least threshold,
// ordered by score descending, then kind and id ascending.
// Both tables are limited to k, which always contains the top k of their union.
func (e *Engine) Retrieve(ctx context.Context, embedding []float32, k int, threshold float64) model.Outcome[[]*model.LocationMatch] {
	config := model.QueryConfig{TopK: k, SimilarityThreshold: threshold}.Normalize()

	if model.IsZeroVector(embedding) {
		e.logger.Debug("Skipping retrieval for zero vector")
		return model.NewSuccess([]*model.LocationMatch{})
	}

	var regions, governorates []*model.LocationMatch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		regions, err = e.regions.SelectRegionsBySimilarity(gctx, embedding, config.TopK, config.SimilarityThreshold)
		return err
	})
	g.Go(func() error {
		var err error
		governorates, err = e.governorates.SelectGovernoratesBySimilarity(gctx, embedding, config.TopK, config.SimilarityThreshold)
		return err
	})

	err := g.Wait()
	if err != nil {
		e.logger.Error("Error retrieving locations", slog.String("error", err.Error()))
		return model.NewFailure([]*model.LocationMatch{}, helper.NewError("retrieve", err))
	}

	matches := MergeMatches(config.TopK, config.SimilarityThreshold, regions, governorates)
	e.logger.Debug("Retrieved locations", slog.Int("regions", len(regions)), slog.Int("governorates", len(governorates)), slog.Int("matches", len(matches)))

	return model.NewSuccess(matches)
}

// MergeMatches combines per-kind match lists, drops matches below threshold,
// sorts them and keeps the first k.
func MergeMatches(k int, threshold float64, lists ...[]*model.LocationMatch) []*model.LocationMatch {
	merged := []*model.LocationMatch{}
	for _, list := range lists {
		for _, m := range list {
			if m == nil || !m.Kind.Valid() || m.Score != m.Score || m.Score < threshold {
				continue
			}
			merged = append(merged, m)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Less(merged[j])
	})

	if k >= 0 && len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// FetchAlerts loads the alerts tied to the entity, most recent start date first.
// A region collects the alerts of all its governorates.
func (e *Engine) FetchAlerts(ctx context.Context, kind model.EntityKind, id string) model.Outcome[[]*model.AlertRecord] {
	var records []*model.AlertRecord
	var err error

	switch kind {
	case model.EntityKindRegion:
		records, err = e.alerts.SelectAlertsByRegion(ctx, id)
	case model.EntityKindGovernorate:
		records, err = e.alerts.SelectAlertsByGovernorate(ctx, id)
	default:
		err = fmt.Errorf("unknown entity kind %q", kind)
	}
	if err != nil {
		e.logger.Error("Error fetching alerts", slog.String("kind", string(kind)), slog.String("id", id), slog.String("error", err.Error()))
		return model.NewFailure([]*model.AlertRecord{}, helper.NewError("fetch alerts", err))
	}

	if records == nil {
		records = []*model.AlertRecord{}
	}
	return model.NewSuccess(records)
}
