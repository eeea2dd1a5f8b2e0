// Package leb128 implements the unsigned LEB128 varint encoding used by runestone payloads.
package leb128

import (
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/uint128"
)

const (
	ErrEmpty        = errs.ErrorKind("leb128: empty byte sequence")
	ErrUnterminated = errs.ErrorKind("leb128: unterminated byte sequence")
)

// maxBytes is the longest encoding of a 128-bit integer.
const maxBytes = 19

func EncodeUint128(input uint128.Uint128) []byte {
	bytes := make([]byte, 0, maxBytes)
	for !input.Rsh(7).IsZero() {
		bytes = append(bytes, input.And64(0b0111_1111).Uint8()|0b1000_0000)
		input = input.Rsh(7)
	}
	return append(bytes, input.Uint8())
}

// DecodeUint128 decodes one varint from the start of data and returns it with the number of bytes consumed.
func DecodeUint128(data []byte) (n uint128.Uint128, length int, err error) {
	if len(data) == 0 {
		return uint128.Uint128{}, 0, ErrEmpty
	}

	for i, b := range data {
		if i >= maxBytes {
			return uint128.Uint128{}, 0, errs.OverflowUint128
		}
		value := uint128.From64(uint64(b & 0b0111_1111))
		// the last byte carries only the top 2 bits of a 128-bit integer
		if i == maxBytes-1 && !value.And64(0b0111_1100).IsZero() {
			return uint128.Uint128{}, 0, errs.OverflowUint128
		}
		n = n.Or(value.Lsh(uint(7 * i)))
		if b&0b1000_0000 == 0 {
			return n, i + 1, nil
		}
	}
	return uint128.Uint128{}, 0, ErrUnterminated
}
