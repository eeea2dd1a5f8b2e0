package runes

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRuneIdFromString(t *testing.T) {
	type testcase struct {
		name           string
		input          string
		expectedOutput RuneId
		expectedError  error
	}
	testcases := []testcase{
		{
			name:  "valid rune id",
			input: "1:2",
			expectedOutput: RuneId{
				BlockHeight: 1,
				TxIndex:     2,
			},
		},
		{
			name:          "too many separators",
			input:         "1:2:3",
			expectedError: ErrInvalidSeparator,
		},
		{
			name:          "too few separators",
			input:         "1",
			expectedError: ErrInvalidSeparator,
		},
		{
			name:          "invalid tx index",
			input:         "1:a",
			expectedError: ErrCannotParseTxIndex,
		},
		{
			name:          "invalid block",
			input:         "a:1",
			expectedError: ErrCannotParseBlockHeight,
		},
		{
			name:          "empty tx index",
			input:         "1:",
			expectedError: ErrCannotParseTxIndex,
		},
		{
			name:          "zero block with non-zero tx index",
			input:         "0:1",
			expectedError: ErrRuneIdZeroBlockNonZeroTxIndex,
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			runeId, err := NewRuneIdFromString(tc.input)
			if tc.expectedError != nil {
				assert.ErrorIs(t, err, tc.expectedError)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.expectedOutput, runeId)
		})
	}
}

func TestRuneIdDeltaAndNext(t *testing.T) {
	test := func(previous, next RuneId) {
		t.Run(previous.String()+"_"+next.String(), func(t *testing.T) {
			blockDelta, txIndexDelta := previous.Delta(next)
			actual, err := previous.Next(blockDelta, txIndexDelta)
			assert.NoError(t, err)
			assert.Equal(t, next, actual)
		})
	}

	test(RuneId{}, RuneId{BlockHeight: 840000, TxIndex: 1})
	test(RuneId{BlockHeight: 840000, TxIndex: 1}, RuneId{BlockHeight: 840000, TxIndex: 5})
	test(RuneId{BlockHeight: 840000, TxIndex: 5}, RuneId{BlockHeight: 840001, TxIndex: 2})
}

func TestRuneIdNextOverflow(t *testing.T) {
	_, err := RuneId{BlockHeight: 1, TxIndex: math.MaxUint32}.Next(0, 1)
	assert.ErrorIs(t, err, ErrRuneIdOverflow)

	_, err = RuneId{BlockHeight: math.MaxUint64, TxIndex: 0}.Next(1, 0)
	assert.ErrorIs(t, err, ErrRuneIdOverflow)

	_, err = RuneId{}.Next(0, 1)
	assert.ErrorIs(t, err, ErrRuneIdZeroBlockNonZeroTxIndex)
}

func TestRuneIdCmp(t *testing.T) {
	a := RuneId{BlockHeight: 1, TxIndex: 9}
	b := RuneId{BlockHeight: 2, TxIndex: 0}
	c := RuneId{BlockHeight: 2, TxIndex: 1}

	assert.Equal(t, -1, a.Cmp(b))
	assert.Equal(t, -1, b.Cmp(c))
	assert.Equal(t, 1, c.Cmp(a))
	assert.Equal(t, 0, b.Cmp(b))
}

func TestRuneIdJSON(t *testing.T) {
	runeId := RuneId{BlockHeight: 840000, TxIndex: 3}
	bytes, err := runeId.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, []byte(`"840000:3"`), bytes)

	var parsed RuneId
	assert.NoError(t, parsed.UnmarshalJSON(bytes))
	assert.Equal(t, runeId, parsed)

	assert.Error(t, parsed.UnmarshalJSON([]byte(`840000`)))
}
