package runes

import (
	"testing"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/gaze-network/runes-ledger/pkg/leb128"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeLEB128VarIntsToPayload(integers []uint128.Uint128) []byte {
	payload := make([]byte, 0)
	for _, integer := range integers {
		payload = append(payload, leb128.EncodeUint128(integer)...)
	}
	return payload
}

func u128s(values ...uint64) []uint128.Uint128 {
	return lo.Map(values, func(v uint64, _ int) uint128.Uint128 { return uint128.From64(v) })
}

func txWithOutputs(pkScripts ...[]byte) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	for _, pkScript := range pkScripts {
		tx.AddTxOut(wire.NewTxOut(0, pkScript))
	}
	return tx
}

func runestoneScript(t *testing.T, integers []uint128.Uint128) []byte {
	t.Helper()
	pkScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER).
		AddData(encodeLEB128VarIntsToPayload(integers)).
		Script()
	require.NoError(t, err)
	return pkScript
}

func TestDecipherRunestone(t *testing.T) {
	decipherer := NewDecipherer()

	testDecipherTx := func(t *testing.T, tx *wire.MsgTx, expected Artifact) {
		t.Helper()
		artifact, err := decipherer.Decipher(tx)
		assert.NoError(t, err)
		assert.Equal(t, expected, artifact)
	}
	testDecipherPkScript := func(t *testing.T, pkScript []byte, expected Artifact) {
		t.Helper()
		testDecipherTx(t, txWithOutputs(pkScript), expected)
	}
	testDecipherInteger := func(t *testing.T, integers []uint128.Uint128, expected Artifact) {
		t.Helper()
		testDecipherPkScript(t, runestoneScript(t, integers), expected)
	}

	t.Run("transaction_without_outputs_returns_none", func(t *testing.T) {
		testDecipherTx(t, wire.NewMsgTx(2), nil)
	})
	t.Run("first_opcode_malformed_returns_none", func(t *testing.T) {
		testDecipherPkScript(t, []byte{txscript.OP_DATA_4}, nil)
	})
	t.Run("bare_op_return_returns_none", func(t *testing.T) {
		testDecipherPkScript(t, utils.Must(txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).Script()), nil)
	})
	t.Run("non_matching_op_return_returns_none", func(t *testing.T) {
		testDecipherPkScript(t, utils.Must(txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddOp(txscript.OP_1).Script()), nil)
	})
	t.Run("invalid_script_postfix_is_cenotaph", func(t *testing.T) {
		testDecipherPkScript(t,
			[]byte{txscript.OP_RETURN, RUNESTONE_PAYLOAD_MAGIC_NUMBER, txscript.OP_DATA_4},
			&Cenotaph{Flaws: FlawFlagInvalidScript.Mask()},
		)
	})
	t.Run("non_push_opcode_is_cenotaph", func(t *testing.T) {
		testDecipherPkScript(t,
			utils.Must(txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER).AddOp(txscript.OP_VERIFY).Script()),
			&Cenotaph{Flaws: FlawFlagOpCode.Mask()},
		)
	})
	t.Run("empty_payload_is_empty_runestone", func(t *testing.T) {
		testDecipherPkScript(t,
			utils.Must(txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER).Script()),
			&Runestone{},
		)
	})
	t.Run("truncated_varint_is_cenotaph", func(t *testing.T) {
		testDecipherPkScript(t,
			utils.Must(txscript.NewScriptBuilder().AddOp(txscript.OP_RETURN).AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER).AddData([]byte{0x80}).Script()),
			&Cenotaph{Flaws: FlawFlagVarInt.Mask()},
		)
	})
	t.Run("etching_with_rune_and_divisibility", func(t *testing.T) {
		testDecipherInteger(t,
			u128s(TagFlags.Uint128().Uint64(), 1, TagRune.Uint128().Uint64(), 5, TagDivisibility.Uint128().Uint64(), 2),
			&Runestone{
				Etching: &Etching{
					Rune:         lo.ToPtr(NewRune(5)),
					Divisibility: lo.ToPtr(uint8(2)),
				},
			},
		)
	})
	t.Run("etching_with_terms_and_turbo", func(t *testing.T) {
		flags := FlagEtching.Mask().Or(FlagTerms.Mask()).Or(FlagTurbo.Mask()).Uint128().Uint64()
		testDecipherInteger(t,
			u128s(2, flags, 4, 5, 10, 100, 8, 21, 12, 840000, 18, 1000, 5, 'R'),
			&Runestone{
				Etching: &Etching{
					Rune:   lo.ToPtr(NewRune(5)),
					Symbol: lo.ToPtr('R'),
					Terms: &Terms{
						Amount:      lo.ToPtr(uint128.From64(100)),
						Cap:         lo.ToPtr(uint128.From64(21)),
						HeightStart: lo.ToPtr(uint64(840000)),
						OffsetEnd:   lo.ToPtr(uint64(1000)),
					},
					Turbo: true,
				},
			},
		)
	})
	t.Run("unrecognized_odd_fields_are_ignored", func(t *testing.T) {
		testDecipherInteger(t,
			u128s(2, 1, 5, 'R', 127, 9),
			&Runestone{Etching: &Etching{Symbol: lo.ToPtr('R')}},
		)
	})
	t.Run("unrecognized_even_tag_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t,
			u128s(TagCenotaph.Uint128().Uint64(), 0),
			&Cenotaph{Flaws: FlawFlagUnrecognizedEvenTag.Mask()},
		)
	})
	t.Run("unrecognized_odd_tag_is_ignored", func(t *testing.T) {
		testDecipherInteger(t, u128s(TagNop.Uint128().Uint64(), 0), &Runestone{})
	})
	t.Run("unrecognized_flag_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t,
			u128s(2, Flag(3).Mask().Uint128().Lo),
			&Cenotaph{Flaws: FlawFlagUnrecognizedFlag.Mask()},
		)
	})
	t.Run("truncated_field_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(2, 1, 4), &Cenotaph{Flaws: FlawFlagTruncatedField.Mask()})
	})
	t.Run("edicts_are_delta_decoded", func(t *testing.T) {
		tx := txWithOutputs(
			runestoneScript(t, u128s(0, 840000, 1, 100, 1, 0, 2, 50, 0, 1, 0, 25, 2)),
			[]byte{txscript.OP_TRUE},
		)
		testDecipherTx(t, tx, &Runestone{
			Edicts: []Edict{
				{Id: RuneId{BlockHeight: 840000, TxIndex: 1}, Amount: uint128.From64(100), Output: 1},
				{Id: RuneId{BlockHeight: 840000, TxIndex: 3}, Amount: uint128.From64(50), Output: 0},
				{Id: RuneId{BlockHeight: 840001, TxIndex: 0}, Amount: uint128.From64(25), Output: 2},
			},
		})
	})
	t.Run("edict_output_greater_than_output_count_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(0, 1, 1, 2, 2), &Cenotaph{Flaws: FlawFlagEdictOutput.Mask()})
	})
	t.Run("edict_with_invalid_rune_id_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(0, 0, 1, 2, 0), &Cenotaph{Flaws: FlawFlagEdictRuneId.Mask()})
	})
	t.Run("trailing_integers_in_body_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(0, 1, 1, 2), &Cenotaph{Flaws: FlawFlagTrailingIntegers.Mask()})
	})
	t.Run("cenotaph_keeps_etched_rune_and_mint", func(t *testing.T) {
		testDecipherInteger(t,
			u128s(2, 1, 4, 5, 20, 1, 20, 1, 126, 0),
			&Cenotaph{
				Etching: lo.ToPtr(NewRune(5)),
				Mint:    &RuneId{BlockHeight: 1, TxIndex: 1},
				Flaws:   FlawFlagUnrecognizedEvenTag.Mask(),
			},
		)
	})
	t.Run("divisibility_above_maximum_is_ignored", func(t *testing.T) {
		testDecipherInteger(t, u128s(2, 1, 1, 39), &Runestone{Etching: &Etching{}})
	})
	t.Run("invalid_mint_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(20, 0, 20, 1), &Cenotaph{Flaws: FlawFlagUnrecognizedEvenTag.Mask()})
	})
	t.Run("pointer_out_of_range_is_cenotaph", func(t *testing.T) {
		testDecipherInteger(t, u128s(22, 1), &Cenotaph{Flaws: FlawFlagUnrecognizedEvenTag.Mask()})
	})
	t.Run("pointer_in_range", func(t *testing.T) {
		tx := txWithOutputs(runestoneScript(t, u128s(22, 1)), []byte{txscript.OP_TRUE})
		testDecipherTx(t, tx, &Runestone{Pointer: lo.ToPtr(uint32(1))})
	})
	t.Run("supply_overflow_is_cenotaph", func(t *testing.T) {
		integers := []uint128.Uint128{
			TagFlags.Uint128(), FlagEtching.Mask().Or(FlagTerms.Mask()).Uint128(),
			TagPremine.Uint128(), uint128.Max,
			TagAmount.Uint128(), uint128.From64(1),
			TagCap.Uint128(), uint128.From64(1),
		}
		testDecipherInteger(t, integers, &Cenotaph{Flaws: FlawFlagSupplyOverflow.Mask()})
	})
	t.Run("payload_pushes_are_concatenated", func(t *testing.T) {
		payload := encodeLEB128VarIntsToPayload(u128s(20, 840000, 20, 1))
		pkScript := utils.Must(txscript.NewScriptBuilder().
			AddOp(txscript.OP_RETURN).
			AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER).
			AddData(payload[:3]).
			AddData(payload[3:]).
			Script())
		testDecipherPkScript(t, pkScript, &Runestone{Mint: &RuneId{BlockHeight: 840000, TxIndex: 1}})
	})
	t.Run("only_first_runestone_output_is_used", func(t *testing.T) {
		tx := txWithOutputs(
			[]byte{txscript.OP_TRUE},
			runestoneScript(t, u128s(20, 840000, 20, 1)),
			runestoneScript(t, u128s(126, 0)),
		)
		testDecipherTx(t, tx, &Runestone{Mint: &RuneId{BlockHeight: 840000, TxIndex: 1}})
	})
}

func TestDecipherNilTransaction(t *testing.T) {
	_, err := NewDecipherer().Decipher(nil)
	assert.Error(t, err)
}

func TestEncipherRoundTrip(t *testing.T) {
	runestone := &Runestone{
		Etching: &Etching{
			Divisibility: lo.ToPtr(uint8(2)),
			Premine:      lo.ToPtr(uint128.From64(1000)),
			Rune:         lo.ToPtr(utils.Must(NewRuneFromString("UNCOMMONGOODS"))),
			Spacers:      lo.ToPtr(uint32(0b10000000)),
			Symbol:       lo.ToPtr('⧉'),
			Terms: &Terms{
				Amount:    lo.ToPtr(uint128.From64(1)),
				Cap:       lo.ToPtr(uint128.From64(1_000_000)),
				HeightEnd: lo.ToPtr(uint64(1050000)),
			},
		},
		Mint:    &RuneId{BlockHeight: 1, TxIndex: 0},
		Pointer: lo.ToPtr(uint32(0)),
		Edicts: []Edict{
			{Id: RuneId{BlockHeight: 840000, TxIndex: 2}, Amount: uint128.From64(7), Output: 1},
			{Id: RuneId{BlockHeight: 840000, TxIndex: 1}, Amount: uint128.Zero, Output: 2},
		},
	}
	pkScript, err := runestone.Encipher()
	require.NoError(t, err)

	tx := txWithOutputs([]byte{txscript.OP_TRUE}, pkScript)
	artifact, err := NewDecipherer().Decipher(tx)
	require.NoError(t, err)

	expected := *runestone
	expected.Edicts = []Edict{runestone.Edicts[1], runestone.Edicts[0]}
	assert.Equal(t, &expected, artifact)
}
