package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
	loadSql "github.com/siherrmann/geoalert/sql"
)

// AlertsDBHandlerFunctions defines the interface for alert database operations.
type AlertsDBHandlerFunctions interface {
	UpsertAlert(ctx context.Context, exec Executor, alert *model.Alert) error
	UpsertHazard(ctx context.Context, exec Executor, hazard *model.Hazard) error
	LinkAlertGovernorate(ctx context.Context, exec Executor, alertID string, governorateID string) error
	LinkAlertHazard(ctx context.Context, exec Executor, alertID string, hazardID string) error
	SelectAlertsByRegion(ctx context.Context, regionID string) ([]*model.AlertRecord, error)
	SelectAlertsByGovernorate(ctx context.Context, governorateID string) ([]*model.AlertRecord, error)
	DeleteAlert(ctx context.Context, id string) error
}

// AlertsDBHandler handles alerts, hazards and their junction tables
type AlertsDBHandler struct {
	db *helper.Database
}

// NewAlertsDBHandler creates a new alerts database handler.
// The governorates table has to exist already.
func NewAlertsDBHandler(db *helper.Database, embeddingDim int, force bool) (*AlertsDBHandler, error) {
	if db == nil || db.Instance == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	alertsDbHandler := &AlertsDBHandler{
		db: db,
	}

	err := loadSql.LoadAlertsSql(alertsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load alerts sql", err)
	}

	err = alertsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized AlertsDBHandler")

	return alertsDbHandler, nil
}

// CreateTable creates the alerts, hazards, alert_governorates and alert_hazards tables.
func (h *AlertsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_alerts($1);`, embeddingDim)
	if err != nil {
		return helper.NewError("init alerts", err)
	}

	h.db.Logger.Info("Checked/created tables alerts, hazards, alert_governorates, alert_hazards")

	return nil
}

// UpsertAlert inserts or updates an alert. A nil exec uses the pool.
func (h *AlertsDBHandler) UpsertAlert(ctx context.Context, exec Executor, alert *model.Alert) error {
	if exec == nil {
		exec = h.db.Instance
	}

	_, err := exec.ExecContext(
		ctx,
		`SELECT upsert_alert($1, $2, $3, $4, $5, $6, $7, $8);`,
		alert.ID,
		alert.Title,
		alert.TypeAr,
		alert.TypeEn,
		alert.FromDate,
		alert.ToDate,
		alert.StatusAr,
		alert.StatusEn,
	)
	if err != nil {
		return helper.NewError("upsert alert", err)
	}

	return nil
}

// UpsertHazard inserts or updates a hazard. A nil exec uses the pool.
func (h *AlertsDBHandler) UpsertHazard(ctx context.Context, exec Executor, hazard *model.Hazard) error {
	if exec == nil {
		exec = h.db.Instance
	}

	_, err := exec.ExecContext(
		ctx,
		`SELECT upsert_hazard($1, $2, $3, $4);`,
		hazard.ID,
		hazard.DescriptionAr,
		hazard.DescriptionEn,
		vectorParam(hazard.Embedding),
	)
	if err != nil {
		return helper.NewError("upsert hazard", err)
	}

	return nil
}

// LinkAlertGovernorate links an alert to a governorate, existing links are kept.
func (h *AlertsDBHandler) LinkAlertGovernorate(ctx context.Context, exec Executor, alertID string, governorateID string) error {
	if exec == nil {
		exec = h.db.Instance
	}

	_, err := exec.ExecContext(ctx, `SELECT link_alert_governorate($1, $2);`, alertID, governorateID)
	if err != nil {
		return helper.NewError("link alert governorate", err)
	}

	return nil
}

// LinkAlertHazard links an alert to a hazard, existing links are kept.
func (h *AlertsDBHandler) LinkAlertHazard(ctx context.Context, exec Executor, alertID string, hazardID string) error {
	if exec == nil {
		exec = h.db.Instance
	}

	_, err := exec.ExecContext(ctx, `SELECT link_alert_hazard($1, $2);`, alertID, hazardID)
	if err != nil {
		return helper.NewError("link alert hazard", err)
	}

	return nil
}

// SelectAlertsByRegion returns the alerts of all governorates in a region,
// most recent start date first.
func (h *AlertsDBHandler) SelectAlertsByRegion(ctx context.Context, regionID string) ([]*model.AlertRecord, error) {
	return h.selectAlertRecords(ctx, `SELECT * FROM select_alerts_by_region($1);`, regionID)
}

// SelectAlertsByGovernorate returns the alerts of a governorate,
// most recent start date first.
func (h *AlertsDBHandler) SelectAlertsByGovernorate(ctx context.Context, governorateID string) ([]*model.AlertRecord, error) {
	return h.selectAlertRecords(ctx, `SELECT * FROM select_alerts_by_governorate($1);`, governorateID)
}

func (h *AlertsDBHandler) selectAlertRecords(ctx context.Context, query string, id string) ([]*model.AlertRecord, error) {
	rows, err := h.db.Instance.QueryContext(ctx, query, id)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	records := []*model.AlertRecord{}
	for rows.Next() {
		record := &model.AlertRecord{}
		var fromDate, toDate sql.NullTime

		err := rows.Scan(
			&record.ID,
			&record.Title,
			&record.TypeAr,
			&record.TypeEn,
			&record.StatusAr,
			&record.StatusEn,
			&fromDate,
			&toDate,
			pq.Array(&record.GovernorateNames.Ar),
			pq.Array(&record.GovernorateNames.En),
			pq.Array(&record.Hazards.Ar),
			pq.Array(&record.Hazards.En),
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		if fromDate.Valid {
			record.FromDate = &fromDate.Time
		}
		if toDate.Valid {
			record.ToDate = &toDate.Time
		}
		normalizeBilingual(&record.GovernorateNames)
		normalizeBilingual(&record.Hazards)

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return records, nil
}

// DeleteAlert deletes an alert together with its links.
func (h *AlertsDBHandler) DeleteAlert(ctx context.Context, id string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_alert($1);`, id)
	if err != nil {
		return helper.NewError("delete alert", err)
	}
	return nil
}

func normalizeBilingual(b *model.Bilingual) {
	if b.Ar == nil {
		b.Ar = []string{}
	}
	if b.En == nil {
		b.En = []string{}
	}
}
