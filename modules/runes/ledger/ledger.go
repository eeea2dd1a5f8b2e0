package ledger

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/modules/runes/datagateway"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
)

var (
	ErrNoOpenTransaction      = errors.New("no open ledger transaction")
	ErrTransactionAlreadyOpen = errors.New("ledger transaction already open")
)

// TxLocation keys the staging context of a transaction.
type TxLocation struct {
	BlockHeight uint64
	TxIndex     uint32
	TxId        chainhash.Hash
	Timestamp   time.Time
}

// LedgerCache stages ledger mutations per transaction and writes them to the store on Flush.
//
// Every BeginTransaction must be paired with exactly one EndTransaction. Apply methods are only
// valid between the two. Flush writes every mutation staged since the previous Flush, in staging order.
type LedgerCache interface {
	BeginTransaction(ctx context.Context, loc TxLocation, inputs []*wire.TxIn, outputs []*wire.TxOut) error

	ApplyRunestone(ctx context.Context, db datagateway.LedgerReader, runestone *runes.Runestone, inputs []*wire.TxIn, outputs []*wire.TxOut) error
	ApplyEtching(ctx context.Context, db datagateway.LedgerReader, etching *runes.Etching) error
	ApplyMint(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) error
	ApplyEdict(ctx context.Context, db datagateway.LedgerReader, edict runes.Edict) error

	ApplyCenotaph(ctx context.Context, db datagateway.LedgerReader, cenotaph *runes.Cenotaph, inputs []*wire.TxIn) error
	ApplyCenotaphEtching(ctx context.Context, db datagateway.LedgerReader, name *runes.Rune) error
	ApplyCenotaphMint(ctx context.Context, db datagateway.LedgerReader, runeId runes.RuneId) error

	EndTransaction(ctx context.Context, db datagateway.LedgerReader) error

	Flush(ctx context.Context, db datagateway.LedgerWriter) error
}
