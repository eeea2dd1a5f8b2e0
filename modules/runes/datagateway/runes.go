package datagateway

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
)

type RunesDataGateway interface {
	RunesReaderDataGateway
	LedgerStore
}

// RunesReaderDataGateway serves committed ledger state to the API.
type RunesReaderDataGateway interface {
	// GetLatestIndexedBlock returns errs.NotFound if no block has been indexed.
	GetLatestIndexedBlock(ctx context.Context) (*entity.IndexedBlock, error)
	// GetRuneEntryByRuneId returns errs.NotFound if the rune entry is not found.
	GetRuneEntryByRuneId(ctx context.Context, runeId runes.RuneId) (*runes.RuneEntry, error)
	// GetRuneEntryByRune returns errs.NotFound if the rune entry is not found.
	GetRuneEntryByRune(ctx context.Context, rune runes.Rune) (*runes.RuneEntry, error)
	// GetRuneEntryByRuneIdBatch returns the entries found for runeIds. Missing ids are omitted.
	GetRuneEntryByRuneIdBatch(ctx context.Context, runeIds []runes.RuneId) (map[runes.RuneId]*runes.RuneEntry, error)
	// GetRuneEntries returns rune entries sorted by etching order.
	GetRuneEntries(ctx context.Context, limit int32, offset int32) ([]*runes.RuneEntry, error)
	CountRuneEntries(ctx context.Context) (uint64, error)
	// GetBalancesByPkScript returns the unspent balances of pkScript grouped by rune.
	GetBalancesByPkScript(ctx context.Context, pkScript []byte) ([]*entity.Balance, error)
	// GetOutPointBalances returns the unspent balances held by outPoint.
	GetOutPointBalances(ctx context.Context, outPoint wire.OutPoint) ([]*entity.OutPointBalance, error)
	// GetLedgerEntriesByTxId returns the ledger entries of a transaction in event order.
	GetLedgerEntriesByTxId(ctx context.Context, txId chainhash.Hash) ([]*entity.LedgerEntry, error)
}
