package runes

import "github.com/gaze-network/uint128"

// Edict transfers Amount of rune Id to output index Output. Output equal to the number of
// transaction outputs splits the amount across all non-OP_RETURN outputs.
type Edict struct {
	Id     RuneId
	Amount uint128.Uint128
	Output uint32
}
