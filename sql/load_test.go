package sql

import (
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertFunctionsExist(t *testing.T, db *sql.DB, functions []string) {
	t.Helper()
	for _, funcName := range functions {
		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);", funcName).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "Function %s should exist", funcName)
	}
}

func TestInit(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	t.Run("Initialize database extensions", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		var exists bool
		err = db.Instance.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector');").Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "pgvector extension should be created")
	})

	t.Run("Initialize database extensions is idempotent", func(t *testing.T) {
		err := Init(db.Instance)
		assert.NoError(t, err)

		err = Init(db.Instance)
		assert.NoError(t, err)
	})
}

func TestLoadSql(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	loaders := []struct {
		name      string
		load      func(*sql.DB, bool) error
		functions []string
	}{
		{"regions", LoadRegionsSql, RegionsFunctions},
		{"governorates", LoadGovernoratesSql, GovernoratesFunctions},
		{"alerts", LoadAlertsSql, AlertsFunctions},
	}

	for _, l := range loaders {
		t.Run("Load "+l.name+" SQL functions", func(t *testing.T) {
			err := l.load(db.Instance, false)
			assert.NoError(t, err)
			assertFunctionsExist(t, db.Instance, l.functions)
		})

		t.Run("Load "+l.name+" SQL is idempotent without force", func(t *testing.T) {
			err := l.load(db.Instance, false)
			assert.NoError(t, err)
		})

		t.Run("Load "+l.name+" SQL with force reloads", func(t *testing.T) {
			err := l.load(db.Instance, true)
			assert.NoError(t, err)
			assertFunctionsExist(t, db.Instance, l.functions)
		})
	}
}

func TestLoadAllSql(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	t.Run("Load all SQL functions", func(t *testing.T) {
		err := LoadAllSql(db.Instance, true)
		assert.NoError(t, err)

		assertFunctionsExist(t, db.Instance, RegionsFunctions)
		assertFunctionsExist(t, db.Instance, GovernoratesFunctions)
		assertFunctionsExist(t, db.Instance, AlertsFunctions)
	})

	t.Run("Tables are created by the init functions", func(t *testing.T) {
		_, err := db.Instance.Exec(`SELECT init_regions(3); SELECT init_governorates(3); SELECT init_alerts(3);`)
		require.NoError(t, err)

		for _, table := range []string{"regions", "governorates", "alerts", "hazards", "alert_governorates", "alert_hazards"} {
			var exists bool
			err := db.Instance.QueryRow(`SELECT to_regclass($1) IS NOT NULL;`, table).Scan(&exists)
			require.NoError(t, err)
			assert.True(t, exists, "Table %s should exist", table)
		}
	})
}

func TestCheckFunctions(t *testing.T) {
	db := initDB(t)
	defer db.Close()

	t.Run("Unknown function is reported missing", func(t *testing.T) {
		exist, err := checkFunctions(db.Instance, []string{"function_that_does_not_exist"})
		assert.NoError(t, err)
		assert.False(t, exist)
	})
}
