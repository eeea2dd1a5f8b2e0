package runes

import (
	"encoding/hex"
	"math"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
)

// reconstructedTxVersion is the version of every reconstructed transaction. Artifact decoding does not depend on it.
const reconstructedTxVersion = 2

// ReconstructTransaction builds the canonical transaction the artifact decoder reads from a provider transaction.
// Witness data is never reconstructed. Malformed provider data returns an error wrapping errs.InvalidArgument.
func ReconstructTransaction(block *types.Block, tx *types.Transaction) (*wire.MsgTx, error) {
	if block.Timestamp < txscript.LockTimeThreshold {
		return nil, errors.Wrapf(errs.InvalidArgument, "block timestamp %d is below the lock time threshold", block.Timestamp)
	}

	msgTx := wire.NewMsgTx(reconstructedTxVersion)
	msgTx.LockTime = block.Timestamp

	for i, input := range tx.Metadata.Inputs {
		prevTxId, err := parseTxId(input.PreviousOutput.Txid.Hash)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", i)
		}
		rawScriptSig, ok := types.TrimHexPrefix(input.ScriptSig)
		if !ok {
			return nil, errors.Wrapf(errs.InvalidArgument, "input %d: script sig %q is missing %q prefix", i, input.ScriptSig, types.HexPrefix)
		}
		scriptSig, err := hex.DecodeString(rawScriptSig)
		if err != nil {
			return nil, errors.Wrapf(errors.Join(err, errs.InvalidArgument), "input %d: invalid script sig hex", i)
		}
		txIn := wire.NewTxIn(wire.NewOutPoint(prevTxId, input.PreviousOutput.Vout), scriptSig, nil)
		txIn.Sequence = input.Sequence
		msgTx.AddTxIn(txIn)
	}

	for i, output := range tx.Metadata.Outputs {
		if output.Value > math.MaxInt64 {
			return nil, errors.Wrapf(errs.InvalidArgument, "output %d: value %d overflows int64", i, output.Value)
		}
		pkScript, err := output.ScriptPubKeyBytes()
		if err != nil {
			return nil, errors.Wrapf(err, "output %d", i)
		}
		msgTx.AddTxOut(wire.NewTxOut(int64(output.Value), pkScript))
	}
	return msgTx, nil
}

// parseTxId parses a "0x" prefixed txid in display (byte-reversed) order.
func parseTxId(hash string) (*chainhash.Hash, error) {
	raw, ok := types.TrimHexPrefix(hash)
	if !ok {
		return nil, errors.Wrapf(errs.InvalidArgument, "txid %q is missing %q prefix", hash, types.HexPrefix)
	}
	if len(raw) != chainhash.MaxHashStringSize {
		return nil, errors.Wrapf(errs.InvalidArgument, "txid %q must have %d hex characters", hash, chainhash.MaxHashStringSize)
	}
	txId, err := chainhash.NewHashFromStr(raw)
	if err != nil {
		return nil, errors.Wrapf(errors.Join(err, errs.InvalidArgument), "invalid txid %q", hash)
	}
	return txId, nil
}
