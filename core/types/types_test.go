package types

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScriptPubKeyBytes(t *testing.T) {
	script, err := (&TxOut{ScriptPubKey: "0xab51"}).ScriptPubKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xab, 0x51}, script)

	script, err = (&TxOut{ScriptPubKey: "0x"}).ScriptPubKeyBytes()
	require.NoError(t, err)
	assert.Empty(t, script)

	_, err = (&TxOut{ScriptPubKey: "ab51"}).ScriptPubKeyBytes()
	assert.ErrorIs(t, err, errs.InvalidArgument)

	_, err = (&TxOut{ScriptPubKey: "0xzz"}).ScriptPubKeyBytes()
	assert.ErrorIs(t, err, errs.InvalidArgument)
}

func TestParseMsgBlock(t *testing.T) {
	prevHash := chainhash.Hash{1}
	tx := wire.NewMsgTx(1)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{2}, 3), []byte{0xab}, nil))
	tx.AddTxOut(wire.NewTxOut(5000, []byte{0x51}))

	msgBlock := wire.NewMsgBlock(wire.NewBlockHeader(1, &prevHash, &chainhash.Hash{}, 0, 0))
	msgBlock.Header.Timestamp = time.Unix(1_713_571_767, 0)
	require.NoError(t, msgBlock.AddTransaction(tx))

	block := ParseMsgBlock(msgBlock, 840000)
	assert.Equal(t, uint64(840000), block.Height())
	assert.Equal(t, uint64(839999), block.ParentBlockIdentifier.Index)
	assert.Equal(t, "0x"+prevHash.String(), block.ParentBlockIdentifier.Hash)
	assert.Equal(t, uint32(1_713_571_767), block.Timestamp)
	require.Len(t, block.Transactions, 1)

	parsed := block.Transactions[0]
	assert.Equal(t, "0x"+tx.TxHash().String(), parsed.TransactionIdentifier.Hash)
	assert.Equal(t, uint32(0), parsed.Metadata.Index)
	require.Len(t, parsed.Metadata.Inputs, 1)
	assert.Equal(t, "0x"+chainhash.Hash{2}.String(), parsed.Metadata.Inputs[0].PreviousOutput.Txid.Hash)
	assert.Equal(t, uint32(3), parsed.Metadata.Inputs[0].PreviousOutput.Vout)
	assert.Equal(t, "0xab", parsed.Metadata.Inputs[0].ScriptSig)
	require.Len(t, parsed.Metadata.Outputs, 1)
	assert.Equal(t, uint64(5000), parsed.Metadata.Outputs[0].Value)
	assert.Equal(t, "0x51", parsed.Metadata.Outputs[0].ScriptPubKey)
}
