package database

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/geoalert/helper"
	loadSql "github.com/siherrmann/geoalert/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

const testEmbeddingDim = 3

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	database := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(database.Instance)
	require.NoError(t, err)

	return database
}

type testHandlers struct {
	regions      *RegionsDBHandler
	governorates *GovernoratesDBHandler
	alerts       *AlertsDBHandler
}

// initHandlers creates all handlers on empty tables.
func initHandlers(t *testing.T, database *helper.Database) *testHandlers {
	regions, err := NewRegionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewRegionsDBHandler to not return an error")
	governorates, err := NewGovernoratesDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewGovernoratesDBHandler to not return an error")
	alerts, err := NewAlertsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewAlertsDBHandler to not return an error")

	_, err = database.Instance.Exec(`TRUNCATE regions, governorates, alerts, hazards, alert_governorates, alert_hazards CASCADE;`)
	require.NoError(t, err, "Expected truncate to not return an error")

	return &testHandlers{regions: regions, governorates: governorates, alerts: alerts}
}
