package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
)

//go:embed init.sql
var initSQL string

//go:embed regions.sql
var regionsSQL string

//go:embed governorates.sql
var governoratesSQL string

//go:embed alerts.sql
var alertsSQL string

// Function lists for verification
var RegionsFunctions = []string{
	"init_regions",
	"upsert_region",
	"select_region",
	"select_regions_by_similarity",
	"delete_region",
}

var GovernoratesFunctions = []string{
	"init_governorates",
	"upsert_governorate",
	"select_governorate",
	"select_governorates_by_region",
	"select_governorates_by_similarity",
	"delete_governorate",
}

var AlertsFunctions = []string{
	"init_alerts",
	"upsert_alert",
	"upsert_hazard",
	"link_alert_governorate",
	"link_alert_hazard",
	"select_alerts_by_region",
	"select_alerts_by_governorate",
	"delete_alert",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	slog.Debug("Database extensions initialized successfully")
	return nil
}

// LoadRegionsSql loads region-related SQL functions
func LoadRegionsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "regions", regionsSQL, RegionsFunctions, force)
}

// LoadGovernoratesSql loads governorate-related SQL functions
func LoadGovernoratesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "governorates", governoratesSQL, GovernoratesFunctions, force)
}

// LoadAlertsSql loads alert, hazard and junction SQL functions
func LoadAlertsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "alerts", alertsSQL, AlertsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadRegionsSql(db, force); err != nil {
		return err
	}

	if err := LoadGovernoratesSql(db, force); err != nil {
		return err
	}

	if err := LoadAlertsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadFunctions executes script unless all functions already exist and force is false.
func loadFunctions(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	slog.Debug("SQL functions loaded successfully", slog.String("group", name))
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			slog.Debug("Function does not exist", slog.String("function", f))
			break
		}
	}
	return allExist, nil
}
