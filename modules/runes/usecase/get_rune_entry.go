package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"golang.org/x/sync/errgroup"
)

// GetRuneEntry resolves id as a rune id ("block:tx") first, then as a spaced rune name.
func (u *Usecase) GetRuneEntry(ctx context.Context, id string) (*runes.RuneEntry, error) {
	if runeId, err := runes.NewRuneIdFromString(id); err == nil {
		runeEntry, err := u.runesDg.GetRuneEntryByRuneId(ctx, runeId)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get rune entry by rune id")
		}
		return runeEntry, nil
	}

	spacedRune, err := runes.NewSpacedRuneFromString(id)
	if err != nil {
		return nil, errors.Wrapf(errs.InvalidArgument, "%q is neither a rune id nor a rune name", id)
	}
	runeEntry, err := u.runesDg.GetRuneEntryByRune(ctx, spacedRune.Rune)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rune entry by rune")
	}
	return runeEntry, nil
}

func (u *Usecase) GetRuneEntryByRuneIdBatch(ctx context.Context, runeIds []runes.RuneId) (map[runes.RuneId]*runes.RuneEntry, error) {
	runeEntries, err := u.runesDg.GetRuneEntryByRuneIdBatch(ctx, runeIds)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rune entries by rune ids")
	}
	return runeEntries, nil
}

// GetRuneEntries returns a page of rune entries in etching order and the total number of entries.
func (u *Usecase) GetRuneEntries(ctx context.Context, limit, offset int32) ([]*runes.RuneEntry, uint64, error) {
	var (
		runeEntries []*runes.RuneEntry
		total       uint64
	)
	group, groupctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		runeEntries, err = u.runesDg.GetRuneEntries(groupctx, limit, offset)
		return errors.Wrap(err, "failed to get rune entries")
	})
	group.Go(func() error {
		var err error
		total, err = u.runesDg.CountRuneEntries(groupctx)
		return errors.Wrap(err, "failed to count rune entries")
	})
	if err := group.Wait(); err != nil {
		return nil, 0, errors.WithStack(err)
	}
	return runeEntries, total, nil
}
