package postgres

import (
	"context"
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/internal/postgres"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
)

const runeEntryColumns = `"rune_id", "number", "rune", "spacers", "premine", "symbol", "divisibility", "terms", "terms_amount", "terms_cap", "terms_height_start", "terms_height_end", "terms_offset_start", "terms_offset_end", "turbo", "cenotaph", "mints", "burned_amount", "etching_block", "etching_tx_hash", "etched_at"`

const (
	getLatestIndexedBlock = `SELECT "height", "hash", "prev_hash", "timestamp" FROM "runes_indexed_blocks" ORDER BY "height" DESC LIMIT 1`

	getRuneEntriesByRuneIds = `SELECT ` + runeEntryColumns + ` FROM "runes_entries" WHERE "rune_id" = ANY($1::TEXT[])`

	getRuneEntryByRune = `SELECT ` + runeEntryColumns + ` FROM "runes_entries" WHERE "rune" = $1`

	getRuneEntries = `SELECT ` + runeEntryColumns + ` FROM "runes_entries" ORDER BY "number" LIMIT $1 OFFSET $2`

	countRuneEntries = `SELECT COUNT(*) FROM "runes_entries"`

	getOutPointBalances = `SELECT "rune_id", "pkscript", "tx_hash", "tx_idx", "amount", "block_height", "spent_height" FROM "runes_outpoint_balances" WHERE "tx_hash" = $1 AND "tx_idx" = $2 AND "spent_height" IS NULL ORDER BY "rune_id"`

	getBalancesByPkScript = `SELECT "rune_id", SUM("amount")::DECIMAL FROM "runes_outpoint_balances" WHERE "pkscript" = $1 AND "spent_height" IS NULL GROUP BY "rune_id"`

	getLedgerEntriesByTxHash = `SELECT "rune_id", "block_height", "tx_index", "tx_hash", "output", "pkscript", "amount", "operation", "event_index", "timestamp" FROM "runes_ledger_entries" WHERE "tx_hash" = $1 ORDER BY "event_index"`
)

// queries holds the reads shared by the pool and by ledger transactions.
type queries struct {
	db postgres.Queryable
}

func (q queries) GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	var model indexedBlockModel
	err := q.db.QueryRow(ctx, getLatestIndexedBlock).Scan(&model.Height, &model.Hash, &model.PrevHash, &model.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	indexedBlock, err := mapIndexedBlockModelToType(model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse indexed block model")
	}
	return indexedBlock, nil
}

func (q queries) GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error) {
	runeEntries, err := q.GetRuneEntryByRuneIdBatch(ctx, []runes.RuneId{runeId})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rune entries by rune id")
	}
	runeEntry, ok := runeEntries[runeId]
	if !ok {
		return nil, errors.WithStack(errs.NotFound)
	}
	return runeEntry, nil
}

func (q queries) GetRuneEntryByRuneIdBatch(ctx context.Context, runeIds []runes.RuneId) (map[runes.RuneId]*runes.RuneEntry, error) {
	runeIdStrs := lo.Map(runeIds, func(runeId runes.RuneId, _ int) string { return runeId.String() })
	rows, err := q.db.Query(ctx, getRuneEntriesByRuneIds, runeIdStrs)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	runeEntries, err := collectRuneEntries(rows)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return lo.SliceToMap(runeEntries, func(runeEntry *runes.RuneEntry) (runes.RuneId, *runes.RuneEntry) {
		return runeEntry.RuneId, runeEntry
	}), nil
}

func (q queries) GetRuneEntryByRune(ctx context.Context, name runes.Rune) (*runes.RuneEntry, error) {
	var model runeEntryModel
	if err := scanRuneEntryModel(q.db.QueryRow(ctx, getRuneEntryByRune, name.String()), &model); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.WithStack(errs.NotFound)
		}
		return nil, errors.Wrap(err, "error during query")
	}
	runeEntry, err := mapRuneEntryModelToType(model)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse rune entry model")
	}
	return runeEntry, nil
}

func (q queries) GetRuneEntries(ctx context.Context, limit int32, offset int32) ([]*runes.RuneEntry, error) {
	rows, err := q.db.Query(ctx, getRuneEntries, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	runeEntries, err := collectRuneEntries(rows)
	return runeEntries, errors.WithStack(err)
}

func (q queries) CountRuneEntries(ctx context.Context) (uint64, error) {
	var count int64
	if err := q.db.QueryRow(ctx, countRuneEntries).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "error during query")
	}
	return uint64(count), nil
}

func (q queries) GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error) {
	rows, err := q.db.Query(ctx, getOutPointBalances, outPoint.Hash.String(), int32(outPoint.Index))
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outPointBalanceModel, error) {
		var model outPointBalanceModel
		err := row.Scan(&model.RuneID, &model.Pkscript, &model.TxHash, &model.TxIdx, &model.Amount, &model.BlockHeight, &model.SpentHeight)
		return model, errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan outpoint balances")
	}

	balances := make([]*entity.OutPointBalance, 0, len(models))
	for _, model := range models {
		balance, err := mapOutPointBalanceModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse outpoint balance model")
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

func (q queries) GetBalancesByPkScript(ctx context.Context, pkScript []byte) ([]*entity.Balance, error) {
	rows, err := q.db.Query(ctx, getBalancesByPkScript, hex.EncodeToString(pkScript))
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (balanceModel, error) {
		var model balanceModel
		err := row.Scan(&model.RuneID, &model.Amount)
		return model, errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan balances")
	}

	balances := make([]*entity.Balance, 0, len(models))
	for _, model := range models {
		balance, err := mapBalanceModelToType(model, pkScript)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse balance model")
		}
		balances = append(balances, balance)
	}
	sortBalances(balances)
	return balances, nil
}

func (q queries) GetLedgerEntriesByTxId(ctx context.Context, txId chainhash.Hash) ([]*entity.LedgerEntry, error) {
	rows, err := q.db.Query(ctx, getLedgerEntriesByTxHash, txId.String())
	if err != nil {
		return nil, errors.Wrap(err, "error during query")
	}
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ledgerEntryModel, error) {
		var model ledgerEntryModel
		err := row.Scan(&model.RuneID, &model.BlockHeight, &model.TxIndex, &model.TxHash, &model.Output, &model.Pkscript, &model.Amount, &model.Operation, &model.EventIndex, &model.Timestamp)
		return model, errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan ledger entries")
	}

	entries := make([]*entity.LedgerEntry, 0, len(models))
	for _, model := range models {
		entry, err := mapLedgerEntryModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse ledger entry model")
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func collectRuneEntries(rows pgx.Rows) ([]*runes.RuneEntry, error) {
	models, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (runeEntryModel, error) {
		var model runeEntryModel
		err := scanRuneEntryModel(row, &model)
		return model, errors.WithStack(err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to scan rune entries")
	}

	runeEntries := make([]*runes.RuneEntry, 0, len(models))
	for _, model := range models {
		runeEntry, err := mapRuneEntryModelToType(model)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse rune entry model")
		}
		runeEntries = append(runeEntries, runeEntry)
	}
	return runeEntries, nil
}
