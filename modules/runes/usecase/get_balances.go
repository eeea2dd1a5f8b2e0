package usecase

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/samber/lo"
)

// GetBalancesByPkScript returns the unspent balances of pkScript with the entries of the held runes.
func (u *Usecase) GetBalancesByPkScript(ctx context.Context, pkScript []byte) ([]*entity.Balance, map[runes.RuneId]*runes.RuneEntry, error) {
	balances, err := u.runesDg.GetBalancesByPkScript(ctx, pkScript)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error during GetBalancesByPkScript")
	}
	runeIds := lo.Uniq(lo.Map(balances, func(b *entity.Balance, _ int) runes.RuneId { return b.RuneId }))
	runeEntries, err := u.GetRuneEntryByRuneIdBatch(ctx, runeIds)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return balances, runeEntries, nil
}

// GetOutPointBalances returns the balances held by an unspent output with the entries of the held runes.
func (u *Usecase) GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, map[runes.RuneId]*runes.RuneEntry, error) {
	balances, err := u.runesDg.GetOutPointBalances(ctx, outPoint)
	if err != nil {
		return nil, nil, errors.Wrap(err, "error during GetOutPointBalances")
	}
	runeIds := lo.Uniq(lo.Map(balances, func(b *entity.OutPointBalance, _ int) runes.RuneId { return b.RuneId }))
	runeEntries, err := u.GetRuneEntryByRuneIdBatch(ctx, runeIds)
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	return balances, runeEntries, nil
}
