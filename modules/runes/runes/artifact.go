package runes

import (
	"github.com/btcsuite/btcd/wire"
)

// Artifact is the result of deciphering a transaction: either a *Runestone or a *Cenotaph.
// A transaction without a runes payload deciphers to a nil Artifact.
type Artifact interface {
	artifact()
}

// Runestone is a well-formed runes message.
type Runestone struct {
	// Rune to etch in this transaction
	Etching *Etching
	// The rune ID of the runestone to mint in this transaction
	Mint *RuneId
	// Denotes the transaction output to allocate leftover runes to. If nil, use the first non-OP_RETURN output. If target output is OP_RETURN, those runes are burned.
	Pointer *uint32
	// List of edicts to execute in this transaction, in payload order
	Edicts []Edict
}

// Cenotaph is a malformed runes message. Input runes of a cenotaph transaction are burned,
// the etched rune is created unmintable, and the mint is counted but burned.
type Cenotaph struct {
	Etching *Rune
	Mint    *RuneId
	// Bitmask of flaws that caused the message to be a cenotaph
	Flaws Flaws
}

func (*Runestone) artifact() {}
func (*Cenotaph) artifact()  {}

// ArtifactDecoder extracts the runes artifact of a transaction.
type ArtifactDecoder interface {
	Decipher(tx *wire.MsgTx) (Artifact, error)
}
