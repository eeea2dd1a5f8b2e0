package runes

import (
	"math"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructTransaction(t *testing.T) {
	block := &types.Block{Timestamp: testBlockTimestamp}
	tx := &types.Transaction{
		TransactionIdentifier: types.TransactionIdentifier{Hash: types.HexPrefix + strings.Repeat("00", chainhash.HashSize)},
		Metadata: types.TransactionMetadata{
			Inputs: []*types.TxIn{{
				PreviousOutput: types.PreviousOutput{
					Txid: types.TransactionIdentifier{Hash: types.HexPrefix + strings.Repeat("0", chainhash.MaxHashStringSize)},
				},
				ScriptSig: "0xab",
			}},
			Outputs: []*types.TxOut{{Value: 5000, ScriptPubKey: "0xab"}},
		},
	}

	msgTx, err := ReconstructTransaction(block, tx)
	require.NoError(t, err)

	assert.EqualValues(t, 2, msgTx.Version)
	assert.EqualValues(t, testBlockTimestamp, msgTx.LockTime)
	require.Len(t, msgTx.TxIn, 1)
	assert.Empty(t, msgTx.TxIn[0].Witness)
	assert.Equal(t, []byte{0xab}, msgTx.TxIn[0].SignatureScript)
	assert.Equal(t, chainhash.Hash{}, msgTx.TxIn[0].PreviousOutPoint.Hash)
	require.Len(t, msgTx.TxOut, 1)
	assert.EqualValues(t, 5000, msgTx.TxOut[0].Value)
	assert.Equal(t, []byte{0xab}, msgTx.TxOut[0].PkScript)
}

func TestReconstructTransactionRoundTrip(t *testing.T) {
	prevTxId, err := chainhash.NewHashFromStr("4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b")
	require.NoError(t, err)

	src := wire.NewMsgTx(2)
	src.LockTime = testBlockTimestamp
	txIn := wire.NewTxIn(wire.NewOutPoint(prevTxId, 7), []byte{0x01, 0x02}, nil)
	txIn.Sequence = 0xfffffffd
	src.AddTxIn(txIn)
	src.AddTxOut(wire.NewTxOut(0, []byte{0x6a, 0x5d, 0x00}))
	src.AddTxOut(wire.NewTxOut(10_000, []byte{0x51, 0x20}))

	block := &types.Block{Timestamp: testBlockTimestamp}
	msgTx, err := ReconstructTransaction(block, types.ParseMsgTx(src, 3))
	require.NoError(t, err)

	// lock time equals the block timestamp, everything else survives the provider round trip
	assert.Equal(t, src.TxHash(), msgTx.TxHash())
	assert.Equal(t, *prevTxId, msgTx.TxIn[0].PreviousOutPoint.Hash)
	assert.EqualValues(t, 7, msgTx.TxIn[0].PreviousOutPoint.Index)
	assert.EqualValues(t, 0xfffffffd, msgTx.TxIn[0].Sequence)
}

func TestReconstructTransactionInvalid(t *testing.T) {
	validInput := func() *types.TxIn {
		return &types.TxIn{
			PreviousOutput: types.PreviousOutput{
				Txid: types.TransactionIdentifier{Hash: types.HexPrefix + strings.Repeat("11", chainhash.HashSize)},
			},
			ScriptSig: types.HexPrefix,
		}
	}

	nonHexTxid := types.HexPrefix + strings.Repeat("zz", chainhash.HashSize)

	testCases := []struct {
		name      string
		timestamp uint32
		input     func(in *types.TxIn)
		output    *types.TxOut
	}{
		{
			name:      "timestamp below lock time threshold",
			timestamp: 1000,
		},
		{
			name:  "txid without prefix",
			input: func(in *types.TxIn) { in.PreviousOutput.Txid.Hash = strings.Repeat("11", chainhash.HashSize) },
		},
		{
			name:  "short txid",
			input: func(in *types.TxIn) { in.PreviousOutput.Txid.Hash = "0x1234" },
		},
		{
			name:  "non-hex txid",
			input: func(in *types.TxIn) { in.PreviousOutput.Txid.Hash = nonHexTxid },
		},
		{
			name:  "script sig without prefix",
			input: func(in *types.TxIn) { in.ScriptSig = "ab" },
		},
		{
			name:  "odd length script sig",
			input: func(in *types.TxIn) { in.ScriptSig = "0xabc" },
		},
		{
			name:   "value overflows int64",
			output: &types.TxOut{Value: math.MaxInt64 + 1, ScriptPubKey: "0x51"},
		},
		{
			name:   "script pubkey without prefix",
			output: &types.TxOut{Value: 1, ScriptPubKey: "51"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			block := &types.Block{Timestamp: testBlockTimestamp}
			if tc.timestamp != 0 {
				block.Timestamp = tc.timestamp
			}
			in := validInput()
			if tc.input != nil {
				tc.input(in)
			}
			out := &types.TxOut{Value: 1, ScriptPubKey: "0x51"}
			if tc.output != nil {
				out = tc.output
			}
			tx := &types.Transaction{Metadata: types.TransactionMetadata{
				Inputs:  []*types.TxIn{in},
				Outputs: []*types.TxOut{out},
			}}

			_, err := ReconstructTransaction(block, tx)
			assert.ErrorIs(t, err, errs.InvalidArgument)
		})
	}
}
