package types

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/samber/lo"
)

type TransactionIdentifier struct {
	Hash string
}

type Transaction struct {
	TransactionIdentifier TransactionIdentifier
	Metadata              TransactionMetadata
}

type TransactionMetadata struct {
	// Index is the position of the transaction within its block.
	Index   uint32
	Inputs  []*TxIn
	Outputs []*TxOut
}

type PreviousOutput struct {
	Txid TransactionIdentifier
	Vout uint32
}

type TxIn struct {
	PreviousOutput PreviousOutput
	ScriptSig      string
	Sequence       uint32
}

type TxOut struct {
	Value        uint64
	ScriptPubKey string
}

// ScriptPubKeyBytes decodes the locking script from its "0x" hex form.
func (o *TxOut) ScriptPubKeyBytes() ([]byte, error) {
	raw, ok := TrimHexPrefix(o.ScriptPubKey)
	if !ok {
		return nil, errors.Wrapf(errs.InvalidArgument, "script pubkey %q is missing %q prefix", o.ScriptPubKey, HexPrefix)
	}
	script, err := hex.DecodeString(raw)
	if err != nil {
		return nil, errors.Wrap(errors.Join(err, errs.InvalidArgument), "invalid script pubkey hex")
	}
	return script, nil
}

// ParseMsgTx converts a btcd/wire.MsgTx into a provider Transaction.
func ParseMsgTx(src *wire.MsgTx, index uint32) *Transaction {
	return &Transaction{
		TransactionIdentifier: TransactionIdentifier{
			Hash: HexPrefix + src.TxHash().String(),
		},
		Metadata: TransactionMetadata{
			Index: index,
			Inputs: lo.Map(src.TxIn, func(item *wire.TxIn, _ int) *TxIn {
				return ParseTxIn(item)
			}),
			Outputs: lo.Map(src.TxOut, func(item *wire.TxOut, _ int) *TxOut {
				return ParseTxOut(item)
			}),
		},
	}
}

// ParseTxIn converts a btcd/wire.TxIn into a provider TxIn.
func ParseTxIn(src *wire.TxIn) *TxIn {
	return &TxIn{
		PreviousOutput: PreviousOutput{
			Txid: TransactionIdentifier{Hash: HexPrefix + src.PreviousOutPoint.Hash.String()},
			Vout: src.PreviousOutPoint.Index,
		},
		ScriptSig: EncodeHex(src.SignatureScript),
		Sequence:  src.Sequence,
	}
}

// ParseTxOut converts a btcd/wire.TxOut into a provider TxOut.
func ParseTxOut(src *wire.TxOut) *TxOut {
	return &TxOut{
		Value:        uint64(src.Value),
		ScriptPubKey: EncodeHex(src.PkScript),
	}
}
