package entity

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/uint128"
)

// LedgerOp is a staged store mutation. Stores apply ops strictly in the order given.
type LedgerOp interface {
	ledgerOp()
}

type CreateRuneEntryOp struct {
	Entry *runes.RuneEntry
}

// UpdateRuneEntryOp sets the mutable counters of an existing rune entry.
type UpdateRuneEntryOp struct {
	RuneId       runes.RuneId
	Mints        uint128.Uint128
	BurnedAmount uint128.Uint128
}

type CreateOutPointBalanceOp struct {
	Balance *OutPointBalance
}

// SpendOutPointOp marks every balance held by OutPoint as spent.
type SpendOutPointOp struct {
	OutPoint    wire.OutPoint
	SpentHeight uint64
}

type CreateLedgerEntryOp struct {
	Entry *LedgerEntry
}

func (CreateRuneEntryOp) ledgerOp()       {}
func (UpdateRuneEntryOp) ledgerOp()       {}
func (CreateOutPointBalanceOp) ledgerOp() {}
func (SpendOutPointOp) ledgerOp()         {}
func (CreateLedgerEntryOp) ledgerOp()     {}
