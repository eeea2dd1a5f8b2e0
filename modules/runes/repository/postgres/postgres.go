package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/internal/postgres"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/jackc/pgx/v5"
)

var (
	_ datagateway.RunesDataGateway = (*Repository)(nil)
	_ datagateway.LedgerTx         = (*ledgerTx)(nil)
)

// Repository reads committed runes state from PostgreSQL and opens ledger transactions.
type Repository struct {
	queries
	db postgres.DB
}

func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		queries: queries{db: db},
		db:      db,
	}
}

func (r *Repository) BeginLedgerTx(ctx context.Context) (datagateway.LedgerTx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	return &ledgerTx{
		queries: queries{db: tx},
		tx:      tx,
	}, nil
}

// ledgerTx reads and writes through one database transaction, so reads observe the writes staged before them.
type ledgerTx struct {
	queries
	tx pgx.Tx
}

func (t *ledgerTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Rollback is a no-op after Commit.
func (t *ledgerTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "failed to rollback transaction")
	}
	if err == nil {
		logger.InfoContext(ctx, "rolled back transaction")
	}
	return nil
}
