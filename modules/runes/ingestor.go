package runes

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/ledger"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
)

// BlockIngestor applies the rune artifacts of a block to the ledger in one store transaction.
type BlockIngestor struct {
	decoder runes.ArtifactDecoder
}

func NewBlockIngestor(decoder runes.ArtifactDecoder) *BlockIngestor {
	return &BlockIngestor{decoder: decoder}
}

// IndexBlock processes the transactions of block in order and commits the staged ledger mutations together
// with the indexed block record. Any error rolls the store transaction back and nothing of the block is persisted.
func (i *BlockIngestor) IndexBlock(ctx context.Context, store datagateway.LedgerStore, cache ledger.LedgerCache, block *types.Block) error {
	start := time.Now()
	ctx = logger.WithContext(ctx, slogx.Uint64("height", block.Height()))
	logger.InfoContext(ctx, "Indexing block", slogx.Int("txs", len(block.Transactions)))

	tx, err := store.BeginLedgerTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin ledger transaction")
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to rollback ledger transaction", slogx.Error(err))
		}
	}()

	for _, blockTx := range block.Transactions {
		if err := i.indexTransaction(ctx, tx, cache, block, blockTx); err != nil {
			return errors.Wrapf(err, "failed to index tx %s", blockTx.TransactionIdentifier.Hash)
		}
	}

	if err := cache.Flush(ctx, tx); err != nil {
		return errors.Wrap(err, "failed to flush ledger cache")
	}

	indexedBlock, err := newIndexedBlock(block)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := tx.CreateIndexedBlock(ctx, indexedBlock); err != nil {
		return errors.Wrap(err, "failed to create indexed block")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit ledger transaction")
	}

	logger.InfoContext(ctx, "Block indexed",
		slogx.Int("txs", len(block.Transactions)),
		slogx.Duration("duration", time.Since(start)),
	)
	return nil
}

func (i *BlockIngestor) indexTransaction(ctx context.Context, db datagateway.LedgerTx, cache ledger.LedgerCache, block *types.Block, blockTx *types.Transaction) error {
	msgTx, err := ReconstructTransaction(block, blockTx)
	if err != nil {
		return errors.Wrap(err, "failed to reconstruct transaction")
	}
	txId, err := parseTxId(blockTx.TransactionIdentifier.Hash)
	if err != nil {
		return errors.WithStack(err)
	}

	loc := ledger.TxLocation{
		BlockHeight: block.Height(),
		TxIndex:     blockTx.Metadata.Index,
		TxId:        *txId,
		Timestamp:   time.Unix(int64(block.Timestamp), 0).UTC(),
	}
	if err := cache.BeginTransaction(ctx, loc, msgTx.TxIn, msgTx.TxOut); err != nil {
		return errors.Wrap(err, "failed to begin cache transaction")
	}

	artifact, err := i.decoder.Decipher(msgTx)
	if err != nil {
		return errors.Wrap(err, "failed to decipher artifact")
	}
	for _, command := range PlanCommands(artifact, msgTx) {
		if err := command.Apply(ctx, cache, db); err != nil {
			return errors.WithStack(err)
		}
	}

	if err := cache.EndTransaction(ctx, db); err != nil {
		return errors.Wrap(err, "failed to end cache transaction")
	}
	return nil
}

func newIndexedBlock(block *types.Block) (*entity.IndexedBlock, error) {
	hash, err := parseBlockHash(block.BlockIdentifier.Hash)
	if err != nil {
		return nil, errors.Wrap(err, "invalid block hash")
	}
	indexed := &entity.IndexedBlock{
		Height:    block.Height(),
		Hash:      hash,
		Timestamp: time.Unix(int64(block.Timestamp), 0).UTC(),
	}
	if block.ParentBlockIdentifier.Hash != "" {
		prevHash, err := parseBlockHash(block.ParentBlockIdentifier.Hash)
		if err != nil {
			return nil, errors.Wrap(err, "invalid parent block hash")
		}
		indexed.PrevHash = prevHash
	}
	return indexed, nil
}

func parseBlockHash(hash string) (chainhash.Hash, error) {
	raw, ok := types.TrimHexPrefix(hash)
	if !ok {
		return chainhash.Hash{}, errors.Wrapf(errs.InvalidArgument, "block hash %q is missing %q prefix", hash, types.HexPrefix)
	}
	parsed, err := chainhash.NewHashFromStr(raw)
	if err != nil {
		return chainhash.Hash{}, errors.Wrap(errors.Join(err, errs.InvalidArgument), "invalid block hash hex")
	}
	return *parsed, nil
}
