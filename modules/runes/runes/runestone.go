package runes

import (
	"slices"
	"unicode/utf8"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/pkg/leb128"
	"github.com/gaze-network/uint128"
	"github.com/samber/lo"
)

const RUNESTONE_PAYLOAD_MAGIC_NUMBER = txscript.OP_13

// Decipherer decodes runes artifacts from OP_RETURN outputs.
type Decipherer struct{}

var _ ArtifactDecoder = Decipherer{}

func NewDecipherer() Decipherer {
	return Decipherer{}
}

// Decipher returns the artifact carried by the first OP_RETURN OP_13 output of tx, or nil if
// there is none. Malformed payloads produce a *Cenotaph, never an error.
func (Decipherer) Decipher(tx *wire.MsgTx) (Artifact, error) {
	if tx == nil {
		return nil, errors.New("transaction is nil")
	}

	payload, flaws, found := runestonePayloadFromTx(tx)
	if !found {
		return nil, nil
	}
	if flaws != 0 {
		return &Cenotaph{Flaws: flaws}, nil
	}

	integers, err := decodeLEB128VarIntsFromPayload(payload)
	if err != nil {
		return &Cenotaph{Flaws: FlawFlagVarInt.Mask()}, nil
	}

	message := MessageFromIntegers(len(tx.TxOut), integers)
	edicts, fields := message.Edicts, message.Fields
	flaws = message.Flaws

	flags, _ := takeField(fields, TagFlags, 1, func(values []uint128.Uint128) (Flags, bool) {
		return Flags(values[0]), true
	})

	var etching *Etching
	if flags.Take(FlagEtching) {
		etching = &Etching{}
		if v, ok := takeField(fields, TagDivisibility, 1, func(values []uint128.Uint128) (uint8, bool) {
			return uint8(values[0].Lo), values[0].Cmp64(uint64(maxDivisibility)) <= 0
		}); ok {
			etching.Divisibility = &v
		}
		if v, ok := takeField(fields, TagPremine, 1, takeU128); ok {
			etching.Premine = &v
		}
		if v, ok := takeField(fields, TagRune, 1, func(values []uint128.Uint128) (Rune, bool) {
			return Rune(values[0]), true
		}); ok {
			etching.Rune = &v
		}
		if v, ok := takeField(fields, TagSpacers, 1, func(values []uint128.Uint128) (uint32, bool) {
			return uint32(values[0].Lo), values[0].Cmp64(uint64(maxSpacers)) <= 0
		}); ok {
			etching.Spacers = &v
		}
		if v, ok := takeField(fields, TagSymbol, 1, func(values []uint128.Uint128) (rune, bool) {
			if !values[0].IsUint32() {
				return 0, false
			}
			r := rune(values[0].Uint32())
			return r, values[0].Cmp64(utf8.MaxRune) <= 0 && utf8.ValidRune(r)
		}); ok {
			etching.Symbol = &v
		}
		if flags.Take(FlagTerms) {
			terms := &Terms{}
			if v, ok := takeField(fields, TagCap, 1, takeU128); ok {
				terms.Cap = &v
			}
			if v, ok := takeField(fields, TagHeightStart, 1, takeU64); ok {
				terms.HeightStart = &v
			}
			if v, ok := takeField(fields, TagHeightEnd, 1, takeU64); ok {
				terms.HeightEnd = &v
			}
			if v, ok := takeField(fields, TagAmount, 1, takeU128); ok {
				terms.Amount = &v
			}
			if v, ok := takeField(fields, TagOffsetStart, 1, takeU64); ok {
				terms.OffsetStart = &v
			}
			if v, ok := takeField(fields, TagOffsetEnd, 1, takeU64); ok {
				terms.OffsetEnd = &v
			}
			etching.Terms = terms
		}
		etching.Turbo = flags.Take(FlagTurbo)
	}

	var mint *RuneId
	if v, ok := takeField(fields, TagMint, 2, func(values []uint128.Uint128) (RuneId, bool) {
		if !values[0].IsUint64() || !values[1].IsUint32() {
			return RuneId{}, false
		}
		runeId, err := NewRuneId(values[0].Uint64(), values[1].Uint32())
		return runeId, err == nil
	}); ok {
		mint = &v
	}

	var pointer *uint32
	if v, ok := takeField(fields, TagPointer, 1, func(values []uint128.Uint128) (uint32, bool) {
		return uint32(values[0].Lo), values[0].Cmp64(uint64(len(tx.TxOut))) < 0
	}); ok {
		pointer = &v
	}

	if etching != nil {
		if _, err := etching.Supply(); err != nil {
			flaws |= FlawFlagSupplyOverflow.Mask()
		}
	}
	if !flags.IsZero() {
		flaws |= FlawFlagUnrecognizedFlag.Mask()
	}
	if fields.HasEvenTag() {
		flaws |= FlawFlagUnrecognizedEvenTag.Mask()
	}

	if flaws != 0 {
		cenotaph := &Cenotaph{
			Flaws: flaws,
			Mint:  mint,
		}
		if etching != nil {
			cenotaph.Etching = etching.Rune
		}
		return cenotaph, nil
	}

	return &Runestone{
		Etching: etching,
		Mint:    mint,
		Pointer: pointer,
		Edicts:  edicts,
	}, nil
}

func takeU128(values []uint128.Uint128) (uint128.Uint128, bool) {
	return values[0], true
}

func takeU64(values []uint128.Uint128) (uint64, bool) {
	return values[0].Lo, values[0].IsUint64()
}

// runestonePayloadFromTx concatenates the data pushes following OP_RETURN OP_13 in the first
// matching output. Once an output matches, script errors and non-push opcodes are flaws.
func runestonePayloadFromTx(tx *wire.MsgTx) (payload []byte, flaws Flaws, found bool) {
	for _, output := range tx.TxOut {
		tokenizer := txscript.MakeScriptTokenizer(0, output.PkScript)

		if !tokenizer.Next() || tokenizer.Opcode() != txscript.OP_RETURN {
			continue
		}
		if !tokenizer.Next() || tokenizer.Opcode() != RUNESTONE_PAYLOAD_MAGIC_NUMBER {
			continue
		}

		payload := make([]byte, 0)
		for tokenizer.Next() {
			if !IsDataPushOpCode(tokenizer.Opcode()) {
				return nil, FlawFlagOpCode.Mask(), true
			}
			payload = append(payload, tokenizer.Data()...)
		}
		if tokenizer.Err() != nil {
			return nil, FlawFlagInvalidScript.Mask(), true
		}
		return payload, 0, true
	}
	return nil, 0, false
}

func decodeLEB128VarIntsFromPayload(payload []byte) ([]uint128.Uint128, error) {
	integers := make([]uint128.Uint128, 0)
	i := 0

	for i < len(payload) {
		n, length, err := leb128.DecodeUint128(payload[i:])
		if err != nil {
			return nil, errors.Wrap(err, "cannot decode LEB128 varint")
		}

		integers = append(integers, n)
		i += length
	}

	return integers, nil
}

func IsDataPushOpCode(opCode byte) bool {
	// includes OP_0, OP_DATA_1 to OP_DATA_75, OP_PUSHDATA1, OP_PUSHDATA2, OP_PUSHDATA4
	return opCode <= txscript.OP_PUSHDATA4
}

// Encipher encodes a runestone into a scriptPubKey, ready to be put into a transaction output.
// Edicts are written sorted by rune id so that ids can be delta encoded.
func (r Runestone) Encipher() ([]byte, error) {
	var payload []byte

	encodeUint128 := func(value uint128.Uint128) {
		payload = append(payload, leb128.EncodeUint128(value)...)
	}
	encodeTagValues := func(tag Tag, values ...uint128.Uint128) {
		for _, value := range values {
			encodeUint128(tag.Uint128())
			encodeUint128(value)
		}
	}

	if r.Etching != nil {
		etching := r.Etching
		flags := Flags(uint128.Zero)
		flags.Set(FlagEtching)
		if etching.Terms != nil {
			flags.Set(FlagTerms)
		}
		if etching.Turbo {
			flags.Set(FlagTurbo)
		}
		encodeTagValues(TagFlags, flags.Uint128())

		if etching.Rune != nil {
			encodeTagValues(TagRune, etching.Rune.Uint128())
		}
		if etching.Divisibility != nil {
			encodeTagValues(TagDivisibility, uint128.From64(uint64(*etching.Divisibility)))
		}
		if etching.Spacers != nil {
			encodeTagValues(TagSpacers, uint128.From64(uint64(*etching.Spacers)))
		}
		if etching.Symbol != nil {
			encodeTagValues(TagSymbol, uint128.From64(uint64(*etching.Symbol)))
		}
		if etching.Premine != nil {
			encodeTagValues(TagPremine, *etching.Premine)
		}
		if terms := etching.Terms; terms != nil {
			if terms.Amount != nil {
				encodeTagValues(TagAmount, *terms.Amount)
			}
			if terms.Cap != nil {
				encodeTagValues(TagCap, *terms.Cap)
			}
			if terms.HeightStart != nil {
				encodeTagValues(TagHeightStart, uint128.From64(*terms.HeightStart))
			}
			if terms.HeightEnd != nil {
				encodeTagValues(TagHeightEnd, uint128.From64(*terms.HeightEnd))
			}
			if terms.OffsetStart != nil {
				encodeTagValues(TagOffsetStart, uint128.From64(*terms.OffsetStart))
			}
			if terms.OffsetEnd != nil {
				encodeTagValues(TagOffsetEnd, uint128.From64(*terms.OffsetEnd))
			}
		}
	}

	if r.Mint != nil {
		encodeTagValues(TagMint, uint128.From64(r.Mint.BlockHeight), uint128.From64(uint64(r.Mint.TxIndex)))
	}
	if r.Pointer != nil {
		encodeTagValues(TagPointer, uint128.From64(uint64(*r.Pointer)))
	}
	if len(r.Edicts) > 0 {
		encodeUint128(TagBody.Uint128())
		edicts := slices.Clone(r.Edicts)
		slices.SortStableFunc(edicts, func(i, j Edict) int {
			return i.Id.Cmp(j.Id)
		})
		var previousRuneId RuneId
		for _, edict := range edicts {
			blockDelta, txIndexDelta := previousRuneId.Delta(edict.Id)
			encodeUint128(uint128.From64(blockDelta))
			encodeUint128(uint128.From64(uint64(txIndexDelta)))
			encodeUint128(edict.Amount)
			encodeUint128(uint128.From64(uint64(edict.Output)))
			previousRuneId = edict.Id
		}
	}

	sb := txscript.NewScriptBuilder().
		AddOp(txscript.OP_RETURN).
		AddOp(RUNESTONE_PAYLOAD_MAGIC_NUMBER)

	// chunk payload to MaxScriptElementSize
	for _, chunk := range lo.Chunk(payload, txscript.MaxScriptElementSize) {
		sb.AddData(chunk)
	}

	scriptPubKey, err := sb.Script()
	if err != nil {
		return nil, errors.Wrap(err, "cannot build scriptPubKey")
	}
	return scriptPubKey, nil
}
