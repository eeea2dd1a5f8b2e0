package runes

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/indexer"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/ledger"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

var _ indexer.Processor = (*Processor)(nil)

// Processor indexes blocks one by one through a BlockIngestor, each block with a fresh ledger cache.
type Processor struct {
	runesDg       datagateway.RunesDataGateway
	ingestor      *BlockIngestor
	network       common.Network
	genesisHeight uint64
	cleanupFuncs  []func(context.Context) error
}

func NewProcessor(runesDg datagateway.RunesDataGateway, decoder runes.ArtifactDecoder, network common.Network, cleanupFuncs []func(context.Context) error) (*Processor, error) {
	genesisHeight, err := network.GenesisHeight()
	if err != nil {
		return nil, errors.Wrap(err, "can't resolve runes genesis height")
	}
	return &Processor{
		runesDg:       runesDg,
		ingestor:      NewBlockIngestor(decoder),
		network:       network,
		genesisHeight: genesisHeight,
		cleanupFuncs:  cleanupFuncs,
	}, nil
}

func (p *Processor) VerifyStates(ctx context.Context) error {
	if p.network == common.NetworkMainnet {
		if err := p.ensureGenesisRune(ctx); err != nil {
			return errors.Wrap(err, "error during ensureGenesisRune")
		}
	}
	return nil
}

var genesisRuneId = runes.RuneId{BlockHeight: 1, TxIndex: 0}

// ensureGenesisRune creates UNCOMMON•GOODS, the rune hardcoded at activation, so that etched runes are numbered from 1.
func (p *Processor) ensureGenesisRune(ctx context.Context) error {
	_, err := p.runesDg.GetRuneEntryByRuneId(ctx, genesisRuneId)
	if err == nil {
		return nil
	}
	if !errors.Is(err, errs.NotFound) {
		return errors.Wrap(err, "failed to get genesis rune entry")
	}

	runeEntry := &runes.RuneEntry{
		RuneId:       genesisRuneId,
		Number:       0,
		Divisibility: 0,
		Premine:      uint128.Zero,
		SpacedRune:   runes.NewSpacedRune(runes.NewRune(2055900680524219742), 0b10000000),
		Symbol:       '⧉',
		Terms: &runes.Terms{
			Amount:      lo.ToPtr(uint128.From64(1)),
			Cap:         &uint128.Max,
			HeightStart: lo.ToPtr(uint64(common.HalvingInterval * 4)),
			HeightEnd:   lo.ToPtr(uint64(common.HalvingInterval * 5)),
		},
		Turbo:        true,
		Mints:        uint128.Zero,
		BurnedAmount: uint128.Zero,
		EtchingBlock: genesisRuneId.BlockHeight,
	}

	tx, err := p.runesDg.BeginLedgerTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin ledger transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to rollback ledger transaction", slogx.Error(err))
		}
	}()
	if err := tx.WriteLedgerOps(ctx, []entity.LedgerOp{entity.CreateRuneEntryOp{Entry: runeEntry}}); err != nil {
		return errors.Wrap(err, "failed to create genesis rune entry")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit genesis rune entry")
	}
	logger.InfoContext(ctx, "Created genesis rune entry", slogx.Stringer("rune", runeEntry.SpacedRune))
	return nil
}

func (p *Processor) Name() string {
	return "Runes"
}

func (p *Processor) CurrentBlock(ctx context.Context) (types.BlockIdentifier, error) {
	block, err := p.runesDg.GetLatestIndexedBlock(ctx)
	if err != nil {
		if errors.Is(err, errs.NotFound) {
			return types.BlockIdentifier{
				Index: p.genesisHeight - 1,
				Hash:  startingBlockHash[p.network],
			}, nil
		}
		return types.BlockIdentifier{}, errors.Wrap(err, "failed to get latest indexed block")
	}
	return types.BlockIdentifier{
		Index: block.Height,
		Hash:  types.HexPrefix + block.Hash.String(),
	}, nil
}

func (p *Processor) Process(ctx context.Context, blocks []*types.Block) error {
	for _, block := range blocks {
		cache := ledger.NewCache(p.genesisHeight)
		if err := p.ingestor.IndexBlock(ctx, p.runesDg, cache, block); err != nil {
			return errors.Wrapf(err, "failed to index block %d", block.Height())
		}
	}
	return nil
}

func (p *Processor) Shutdown(ctx context.Context) error {
	var cleanupErrs []error
	for _, cleanup := range p.cleanupFuncs {
		if err := cleanup(ctx); err != nil {
			cleanupErrs = append(cleanupErrs, err)
		}
	}
	return errors.WithStack(errors.Join(cleanupErrs...))
}
