package loader

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/siherrmann/geoalert/core/pipeline"
	"github.com/siherrmann/geoalert/database"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
)

const (
	DefaultDownloadTimeout = 10 * time.Second
	DefaultRetryDelay      = 60 * time.Second
	maxFeedBytes           = 256 << 20
	embedAttempts          = 3
	waitForDBAttempts      = 5
)

// Loader downloads the alert feed and replaces the store content with it.
type Loader struct {
	db           *helper.Database
	regions      *database.RegionsDBHandler
	governorates *database.GovernoratesDBHandler
	alerts       *database.AlertsDBHandler
	embed        pipeline.EmbedFunc
	dimension    int
	client       *http.Client
	logger       *slog.Logger

	// RetryInterval is the first backoff interval of embedding and database retries.
	RetryInterval time.Duration
	// RetryDelay is the wait after a failed run before the next attempt.
	RetryDelay time.Duration
}

// NewLoader creates a loader writing through the given handlers.
func NewLoader(db *helper.Database, regions *database.RegionsDBHandler, governorates *database.GovernoratesDBHandler, alerts *database.AlertsDBHandler, embed pipeline.EmbedFunc, dimension int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = db.Logger
	}
	return &Loader{
		db:            db,
		regions:       regions,
		governorates:  governorates,
		alerts:        alerts,
		embed:         embed,
		dimension:     dimension,
		client:        &http.Client{Timeout: DefaultDownloadTimeout},
		logger:        logger,
		RetryInterval: time.Second,
		RetryDelay:    DefaultRetryDelay,
	}
}

// Download fetches and parses the feed at url.
func (l *Loader) Download(ctx context.Context, url string) (*FeatureCollection, error) {
	l.logger.Info("Starting download", slog.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, helper.NewError("create request", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, helper.NewError("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, helper.NewError("download", fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, helper.NewError("read body", err)
	}

	fc, err := ParseFeatureCollection(data)
	if err != nil {
		return nil, helper.NewError("parse feed", err)
	}

	l.logger.Info("Downloaded feed", slog.Int("features", len(fc.Features)), slog.Int("bytes", len(data)))
	return fc, nil
}

func (l *Loader) newBackOff(ctx context.Context, attempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.RetryInterval
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Embed embeds text with up to three attempts. Empty text is the zero vector.
func (l *Loader) Embed(ctx context.Context, text string) ([]float32, error) {
	text = pipeline.PrepareText(text)
	if text == "" {
		return model.ZeroVector(l.dimension), nil
	}

	var embedding []float32
	operation := func() error {
		var err error
		embedding, err = l.embed(ctx, text)
		if err != nil {
			return err
		}
		if len(embedding) != l.dimension {
			return backoff.Permanent(fmt.Errorf("embedding has dimension %d, expected %d", len(embedding), l.dimension))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("Embedding request failed, retrying", slog.String("error", err.Error()), slog.Duration("wait", wait))
	}

	err := backoff.RetryNotify(operation, l.newBackOff(ctx, embedAttempts), notify)
	if err != nil {
		return nil, helper.NewError("embed", err)
	}
	return embedding, nil
}

// EmbedDataset fills the embeddings of regions, governorates and hazards.
func (l *Loader) EmbedDataset(ctx context.Context, d *Dataset) error {
	var err error
	for _, r := range d.Regions {
		r.Embedding, err = l.Embed(ctx, RegionText(r))
		if err != nil {
			return helper.NewError(fmt.Sprintf("embed region %s", r.ID), err)
		}
	}
	for _, g := range d.Governorates {
		g.Embedding, err = l.Embed(ctx, GovernorateText(g))
		if err != nil {
			return helper.NewError(fmt.Sprintf("embed governorate %s", g.ID), err)
		}
	}
	for _, h := range d.Hazards {
		h.Embedding, err = l.Embed(ctx, HazardText(h))
		if err != nil {
			return helper.NewError(fmt.Sprintf("embed hazard %s", h.ID), err)
		}
	}
	return nil
}

// Store upserts the dataset in a single transaction.
func (l *Loader) Store(ctx context.Context, d *Dataset) error {
	return database.RunInTx(ctx, l.db, func(tx *sql.Tx) error {
		l.logger.Info("Upserting regions", slog.Int("count", len(d.Regions)))
		for _, r := range d.Regions {
			if err := l.regions.UpsertRegion(ctx, tx, r); err != nil {
				return err
			}
		}

		l.logger.Info("Upserting governorates", slog.Int("count", len(d.Governorates)))
		for _, g := range d.Governorates {
			if err := l.governorates.UpsertGovernorate(ctx, tx, g); err != nil {
				return err
			}
		}

		l.logger.Info("Upserting alerts", slog.Int("count", len(d.Alerts)))
		for _, a := range d.Alerts {
			if err := l.alerts.UpsertAlert(ctx, tx, a); err != nil {
				return err
			}
		}

		l.logger.Info("Upserting hazards", slog.Int("count", len(d.Hazards)))
		for _, h := range d.Hazards {
			if err := l.alerts.UpsertHazard(ctx, tx, h); err != nil {
				return err
			}
		}

		l.logger.Info("Linking alerts", slog.Int("governorates", len(d.AlertGovernorates)), slog.Int("hazards", len(d.AlertHazards)))
		for _, link := range d.AlertHazards {
			if err := l.alerts.LinkAlertHazard(ctx, tx, link.AlertID, link.OtherID); err != nil {
				return err
			}
		}
		for _, link := range d.AlertGovernorates {
			if err := l.alerts.LinkAlertGovernorate(ctx, tx, link.AlertID, link.OtherID); err != nil {
				return err
			}
		}
		return nil
	})
}

// WaitForDB waits for the store with exponential backoff.
func (l *Loader) WaitForDB(ctx context.Context) error {
	notify := func(err error, wait time.Duration) {
		l.logger.Warn("Database not ready, retrying", slog.String("error", err.Error()), slog.Duration("wait", wait))
	}
	err := backoff.RetryNotify(func() error {
		return l.db.Health(ctx)
	}, l.newBackOff(ctx, waitForDBAttempts), notify)
	if err != nil {
		return helper.NewError("wait for database", err)
	}
	return nil
}

// LoadOnce downloads, embeds and stores the feed at url.
func (l *Loader) LoadOnce(ctx context.Context, url string) (*Dataset, error) {
	fc, err := l.Download(ctx, url)
	if err != nil {
		return nil, err
	}

	d := fc.Extract()
	for _, value := range d.UnknownDateFormats {
		l.logger.Warn("Unknown date format, storing NULL", slog.String("value", value))
	}

	err = l.WaitForDB(ctx)
	if err != nil {
		return nil, err
	}

	err = l.EmbedDataset(ctx, d)
	if err != nil {
		return nil, err
	}

	err = l.Store(ctx, d)
	if err != nil {
		return nil, helper.NewError("store dataset", err)
	}

	l.logger.Info(
		"Data load completed",
		slog.Int("regions", len(d.Regions)),
		slog.Int("governorates", len(d.Governorates)),
		slog.Int("alerts", len(d.Alerts)),
		slog.Int("hazards", len(d.Hazards)),
	)
	return d, nil
}

// Run loads the feed every interval until ctx is cancelled.
// A failed load is retried after RetryDelay.
func (l *Loader) Run(ctx context.Context, url string, interval time.Duration) error {
	for {
		l.logger.Info("Starting data load")
		wait := interval
		_, err := l.LoadOnce(ctx, url)
		if err != nil {
			l.logger.Error("Data load failed", slog.String("error", err.Error()))
			wait = l.RetryDelay
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
