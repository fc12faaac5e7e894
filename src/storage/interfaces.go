package storage

import (
	"context"
	"database/sql"
)

// Execer is an interface for executing SQL statements. Reads take a
// sqlscan.Querier; both are satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}
