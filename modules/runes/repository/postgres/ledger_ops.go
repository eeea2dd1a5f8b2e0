package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	createRuneEntry = `INSERT INTO "runes_entries" (` + runeEntryColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`

	updateRuneEntryStats = `UPDATE "runes_entries" SET "mints" = $2, "burned_amount" = $3 WHERE "rune_id" = $1`

	createOutPointBalance = `INSERT INTO "runes_outpoint_balances" ("rune_id", "pkscript", "tx_hash", "tx_idx", "amount", "block_height", "spent_height") VALUES ($1, $2, $3, $4, $5, $6, $7)`

	spendOutPointBalances = `UPDATE "runes_outpoint_balances" SET "spent_height" = $3 WHERE "tx_hash" = $1 AND "tx_idx" = $2 AND "spent_height" IS NULL`

	createLedgerEntry = `INSERT INTO "runes_ledger_entries" ("tx_hash", "event_index", "rune_id", "block_height", "tx_index", "output", "pkscript", "amount", "operation", "timestamp") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	createIndexedBlock = `INSERT INTO "runes_indexed_blocks" ("height", "hash", "prev_hash", "timestamp") VALUES ($1, $2, $3, $4)`
)

// WriteLedgerOps sends ops as one batch. Statements run in the order of ops, and the first failing
// statement fails the batch and leaves the transaction aborted.
func (t *ledgerTx) WriteLedgerOps(ctx context.Context, ops []entity.LedgerOp) error {
	if len(ops) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, op := range ops {
		if err := queueLedgerOp(batch, op); err != nil {
			return errors.Wrapf(err, "failed to queue ledger op %d", i)
		}
	}

	results := t.tx.SendBatch(ctx, batch)
	if err := results.Close(); err != nil {
		return errors.Wrap(err, "failed to write ledger ops")
	}
	return nil
}

func queueLedgerOp(batch *pgx.Batch, op entity.LedgerOp) error {
	switch op := op.(type) {
	case entity.CreateRuneEntryOp:
		args, err := mapRuneEntryTypeToArgs(op.Entry)
		if err != nil {
			return errors.WithStack(err)
		}
		batch.Queue(createRuneEntry, args...)
	case entity.UpdateRuneEntryOp:
		mints, err := numericFromUint128(&op.Mints)
		if err != nil {
			return errors.Wrap(err, "failed to parse mints")
		}
		burnedAmount, err := numericFromUint128(&op.BurnedAmount)
		if err != nil {
			return errors.Wrap(err, "failed to parse burned amount")
		}
		runeId := op.RuneId
		batch.Queue(updateRuneEntryStats, runeId.String(), mints, burnedAmount).Exec(func(tag pgconn.CommandTag) error {
			if tag.RowsAffected() != 1 {
				return errors.Wrapf(errs.NotFound, "rune entry %s not found", runeId)
			}
			return nil
		})
	case entity.CreateOutPointBalanceOp:
		args, err := mapOutPointBalanceTypeToArgs(op.Balance)
		if err != nil {
			return errors.WithStack(err)
		}
		batch.Queue(createOutPointBalance, args...)
	case entity.SpendOutPointOp:
		batch.Queue(spendOutPointBalances, op.OutPoint.Hash.String(), int32(op.OutPoint.Index), int32(op.SpentHeight))
	case entity.CreateLedgerEntryOp:
		args, err := mapLedgerEntryTypeToArgs(op.Entry)
		if err != nil {
			return errors.WithStack(err)
		}
		batch.Queue(createLedgerEntry, args...)
	default:
		return errors.Wrapf(errs.Unsupported, "unsupported ledger op %T", op)
	}
	return nil
}

func (t *ledgerTx) CreateIndexedBlock(ctx context.Context, block *entity.IndexedBlock) error {
	_, err := t.tx.Exec(ctx, createIndexedBlock,
		int32(block.Height),
		block.Hash.String(),
		block.PrevHash.String(),
		block.Timestamp.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "error during exec")
	}
	return nil
}
