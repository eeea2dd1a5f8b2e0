package usecase

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
)

func (u *Usecase) GetLatestBlock(ctx context.Context) (*entity.IndexedBlock, error) {
	block, err := u.runesDg.GetLatestIndexedBlock(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get latest indexed block")
	}
	return block, nil
}
