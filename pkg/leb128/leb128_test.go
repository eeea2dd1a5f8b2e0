package leb128

import (
	"fmt"
	"testing"

	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	values := []uint128.Uint128{uint128.Zero, uint128.Max, uint128.From64(300)}
	alternating := uint128.Zero
	for i := uint(0); i < 128; i++ {
		values = append(values, uint128.From64(1).Lsh(i))
		alternating = alternating.Lsh(1).Or(uint128.From64(uint64(i & 1)))
		values = append(values, alternating)
	}

	for _, value := range values {
		encoded := EncodeUint128(value)
		decoded, length, err := DecodeUint128(encoded)
		require.NoError(t, err, value.String())
		assert.Equal(t, value, decoded)
		assert.Equal(t, len(encoded), length)
	}
}

func TestEncodeUint128(t *testing.T) {
	assert.Equal(t, []byte{0x00}, EncodeUint128(uint128.Zero))
	assert.Equal(t, []byte{0x7f}, EncodeUint128(uint128.From64(127)))
	assert.Equal(t, []byte{0xac, 0x02}, EncodeUint128(uint128.From64(300)))
}

// padded returns n continuation bytes followed by last.
func padded(n int, last byte) []byte {
	data := make([]byte, n, n+1)
	for i := range data {
		data[i] = 0b1000_0000
	}
	return append(data, last)
}

func TestDecodeUint128(t *testing.T) {
	testCases := []struct {
		name     string
		data     []byte
		expected error
	}{
		{name: "empty", data: []byte{}, expected: ErrEmpty},
		{name: "unterminated", data: []byte{0b1000_0000}, expected: ErrUnterminated},
		{name: "19 bytes", data: padded(18, 0)},
		{name: "longer than 19 bytes", data: padded(19, 0), expected: errs.OverflowUint128},
		{name: "highest bit within range", data: padded(18, 2)},
	}
	// the 19th byte holds only the top two bits of a uint128
	for _, last := range []byte{4, 8, 16, 32, 64} {
		testCases = append(testCases, struct {
			name     string
			data     []byte
			expected error
		}{name: fmt.Sprintf("last byte %d overflows", last), data: padded(18, last), expected: errs.OverflowUint128})
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeUint128(tc.data)
			if tc.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	t.Run("trailing bytes are not consumed", func(t *testing.T) {
		n, length, err := DecodeUint128([]byte{0xac, 0x02, 0xff})
		require.NoError(t, err)
		assert.Equal(t, uint128.From64(300), n)
		assert.Equal(t, 2, length)
	})
}
