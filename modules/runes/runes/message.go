package runes

import (
	"github.com/gaze-network/uint128"
)

// Message is the intermediate form of a runestone payload: edicts from the body, every other
// tag/value pair in fields, and the flaws found while parsing them.
type Message struct {
	Flaws  Flaws
	Edicts []Edict
	Fields Fields
}

// MessageFromIntegers groups payload integers into fields and decodes the body. numOutputs is
// the output count of the carrying transaction.
func MessageFromIntegers(numOutputs int, payload []uint128.Uint128) Message {
	var flaws Flaws
	var edicts []Edict
	fields := make(Fields)

	for i := 0; i < len(payload); i += 2 {
		tag := Tag(payload[i])

		if tag == TagBody {
			var id RuneId
			for j := i + 1; j < len(payload); j += 4 {
				if len(payload)-j < 4 {
					flaws |= FlawFlagTrailingIntegers.Mask()
					break
				}
				chunk := payload[j : j+4]

				next, ok := nextRuneId(id, chunk[0], chunk[1])
				if !ok {
					flaws |= FlawFlagEdictRuneId.Mask()
					break
				}
				edict, ok := edictFromIntegers(numOutputs, next, chunk[2], chunk[3])
				if !ok {
					flaws |= FlawFlagEdictOutput.Mask()
					break
				}
				id = next
				edicts = append(edicts, edict)
			}
			break
		}

		if i+1 >= len(payload) {
			flaws |= FlawFlagTruncatedField.Mask()
			break
		}
		fields[tag] = append(fields[tag], payload[i+1])
	}

	return Message{
		Flaws:  flaws,
		Edicts: edicts,
		Fields: fields,
	}
}

func nextRuneId(previous RuneId, blockDelta, txIndexDelta uint128.Uint128) (RuneId, bool) {
	if !blockDelta.IsUint64() || !txIndexDelta.IsUint32() {
		return RuneId{}, false
	}
	next, err := previous.Next(blockDelta.Uint64(), txIndexDelta.Uint32())
	if err != nil {
		return RuneId{}, false
	}
	return next, true
}

// edictFromIntegers accepts output == numOutputs, which means "split across all outputs".
func edictFromIntegers(numOutputs int, id RuneId, amount, output uint128.Uint128) (Edict, bool) {
	if !output.IsUint32() || output.Uint64() > uint64(numOutputs) {
		return Edict{}, false
	}
	return Edict{
		Id:     id,
		Amount: amount,
		Output: output.Uint32(),
	}, true
}
