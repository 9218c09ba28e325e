package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/siherrmann/geoalert/helper"
	"github.com/siherrmann/geoalert/model"
)

// ChangeIndexType changes the vector index of the region or governorate embeddings
// between HNSW and IVFFlat.
// indexType: "hnsw" or "ivfflat"
// params: optional parameters for index creation
//   - For HNSW: "m" (int, default 16), "ef_construction" (int, default 64)
//   - For IVFFlat: "lists" (int, default 100)
func ChangeIndexType(ctx context.Context, db *helper.Database, kind model.EntityKind, indexType string, params map[string]interface{}) error {
	var table, column string
	switch kind {
	case model.EntityKindRegion:
		table, column = "regions", "region_embedding"
	case model.EntityKindGovernorate:
		table, column = "governorates", "gov_embedding"
	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported entity kind: %s", kind))
	}
	indexName := fmt.Sprintf("idx_%s_embedding", table)

	var createIndexSQL string
	switch indexType {
	case "hnsw":
		m := 16
		efConstruction := 64

		if mVal, ok := params["m"].(int); ok {
			m = mVal
		}
		if efVal, ok := params["ef_construction"].(int); ok {
			efConstruction = efVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING hnsw (%s vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			indexName, table, column, m, efConstruction,
		)

	case "ivfflat":
		lists := 100
		if listsVal, ok := params["lists"].(int); ok {
			lists = listsVal
		}

		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON %s USING ivfflat (%s vector_cosine_ops) WITH (lists = %d);`,
			indexName, table, column, lists,
		)

	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	err := RunInTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, indexName))
		if err != nil {
			return helper.NewError("drop index", err)
		}
		_, err = tx.ExecContext(ctx, createIndexSQL)
		if err != nil {
			return helper.NewError("create index", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.Logger.Info("Changed vector index", "table", table, "index_type", indexType, "params", params)

	return nil
}
