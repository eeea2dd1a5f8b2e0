package entity

import (
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/uint128"
)

type OutPointBalance struct {
	RuneId      runes.RuneId
	PkScript    []byte
	OutPoint    wire.OutPoint
	Amount      uint128.Uint128
	BlockHeight uint64
	SpentHeight *uint64
}

// Balance is the total amount of a rune held by a pkScript across unspent outputs.
type Balance struct {
	PkScript []byte
	RuneId   runes.RuneId
	Amount   uint128.Uint128
}
