package datagateway

import (
	"context"

	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
)

// LedgerStore opens store-wide transactions. Each indexed block is written through exactly one LedgerTx.
type LedgerStore interface {
	BeginLedgerTx(ctx context.Context) (LedgerTx, error)
}

type LedgerTx interface {
	LedgerReader
	LedgerWriter
	Tx
}

type LedgerReader interface {
	// GetRuneEntryByRuneId returns errs.NotFound if the rune entry is not found.
	GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error)
	// GetRuneEntryByRune returns errs.NotFound if no entry was etched with the rune.
	GetRuneEntryByRune(ctx context.Context, rune runes.Rune) (*runes.RuneEntry, error)
	CountRuneEntries(ctx context.Context) (uint64, error)
	// GetOutPointBalances returns the unspent balances held by outPoint.
	GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error)
	// GetLatestIndexedBlock returns errs.NotFound if no block has been indexed.
	GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error)
}

type LedgerWriter interface {
	// WriteLedgerOps applies ops in order. A failure aborts the enclosing transaction.
	WriteLedgerOps(ctx context.Context, ops []entity.LedgerOp) error
	CreateIndexedBlock(ctx context.Context, block *entity.IndexedBlock) error
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
