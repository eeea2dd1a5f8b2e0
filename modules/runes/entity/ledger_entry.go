package entity

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/uint128"
)

type LedgerOperation string

const (
	LedgerOperationEtching LedgerOperation = "etching"
	LedgerOperationMint    LedgerOperation = "mint"
	LedgerOperationBurn    LedgerOperation = "burn"
	LedgerOperationSend    LedgerOperation = "send"
	LedgerOperationReceive LedgerOperation = "receive"
)

func (o LedgerOperation) IsValid() bool {
	switch o {
	case LedgerOperationEtching, LedgerOperationMint, LedgerOperationBurn, LedgerOperationSend, LedgerOperationReceive:
		return true
	}
	return false
}

// LedgerEntry is one movement of rune units within a transaction.
type LedgerEntry struct {
	RuneId      runes.RuneId
	BlockHeight uint64
	TxIndex     uint32
	TxId        chainhash.Hash
	// Output is set for receive entries.
	Output *uint32
	// PkScript is the owner of the moved units, if any.
	PkScript  []byte
	Amount    uint128.Uint128
	Operation LedgerOperation
	// EventIndex orders the entries of a transaction.
	EventIndex uint32
	Timestamp  time.Time
}
