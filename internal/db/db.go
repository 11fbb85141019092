package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgx used by Queries. Both *pgx.Conn, pgxpool.Pool and
// pgx.Tx satisfy it, so the same queries run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New creates a Queries instance over the given connection, pool or
// transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the prepared database access methods.
type Queries struct {
	db DBTX
}
