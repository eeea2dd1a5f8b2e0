package usecase

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/samber/lo"
)

// GetLedgerEntriesByTxId returns errs.NotFound if the transaction moved no runes.
func (u *Usecase) GetLedgerEntriesByTxId(ctx context.Context, txId chainhash.Hash) ([]*entity.LedgerEntry, map[runes.RuneId]*runes.RuneEntry, error) {
	entries, err := u.runesDg.GetLedgerEntriesByTxId(ctx, txId)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error during GetLedgerEntriesByTxId")
	}
	if len(entries) == 0 {
		return nil, nil, errors.Wrapf(errs.NotFound, "no rune movements in transaction %s", txId)
	}
	runeIds := lo.Uniq(lo.Map(entries, func(e *entity.LedgerEntry, _ int) runes.RuneId { return e.RuneId }))
	runeEntries, err := u.GetRuneEntryByRuneIdBatch(ctx, runeIds)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return entries, runeEntries, nil
}
