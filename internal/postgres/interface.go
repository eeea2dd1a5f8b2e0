package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	_ DB        = (*pgxpool.Pool)(nil)
	_ Queryable = (pgx.Tx)(nil)
)

// Queryable runs statements against either a pool or an open transaction.
type Queryable interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// DB is a Queryable that can also open transactions.
type DB interface {
	Queryable
	Begin(context.Context) (pgx.Tx, error)
}
