package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/geoalert/helper"
)

// Executor is implemented by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RunInTx runs fn inside a single transaction and commits it if fn succeeds.
func RunInTx(ctx context.Context, db *helper.Database, fn func(tx *sql.Tx) error) error {
	if db == nil || db.Instance == nil {
		return helper.NewError("begin transaction", fmt.Errorf("database connection is nil"))
	}

	tx, err := db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.Logger.Error("Error rolling back transaction", slog.String("error", rbErr.Error()))
		}
		return helper.NewError("transaction", err)
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}

	return nil
}

// vectorParam converts an embedding into a query parameter, NULL for an empty embedding.
func vectorParam(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}
