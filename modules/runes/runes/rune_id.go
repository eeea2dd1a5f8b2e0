package runes

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// RuneId identifies a rune by the block height and index of its etching transaction.
type RuneId struct {
	BlockHeight uint64
	TxIndex     uint32
}

var ErrRuneIdZeroBlockNonZeroTxIndex = errors.New("rune id cannot be zero block height and non-zero tx index")

func NewRuneId(blockHeight uint64, txIndex uint32) (RuneId, error) {
	if blockHeight == 0 && txIndex != 0 {
		return RuneId{}, errors.WithStack(ErrRuneIdZeroBlockNonZeroTxIndex)
	}
	return RuneId{
		BlockHeight: blockHeight,
		TxIndex:     txIndex,
	}, nil
}

var (
	ErrInvalidSeparator       = errors.New("invalid rune id: must contain exactly one separator")
	ErrCannotParseBlockHeight = errors.New("invalid rune id: cannot parse block height")
	ErrCannotParseTxIndex     = errors.New("invalid rune id: cannot parse tx index")
)

// NewRuneIdFromString parses a rune id in "block:tx" form.
func NewRuneIdFromString(str string) (RuneId, error) {
	blockHeightStr, txIndexStr, ok := strings.Cut(str, ":")
	if !ok || strings.Contains(txIndexStr, ":") {
		return RuneId{}, errors.WithStack(ErrInvalidSeparator)
	}
	blockHeight, err := strconv.ParseUint(blockHeightStr, 10, 64)
	if err != nil {
		return RuneId{}, errors.WithStack(errors.Join(err, ErrCannotParseBlockHeight))
	}
	txIndex, err := strconv.ParseUint(txIndexStr, 10, 32)
	if err != nil {
		return RuneId{}, errors.WithStack(errors.Join(err, ErrCannotParseTxIndex))
	}
	return NewRuneId(blockHeight, uint32(txIndex))
}

func (r RuneId) String() string {
	return fmt.Sprintf("%d:%d", r.BlockHeight, r.TxIndex)
}

func (r RuneId) IsZero() bool {
	return r == RuneId{}
}

// Cmp orders rune ids by block height, then tx index.
func (r RuneId) Cmp(other RuneId) int {
	switch {
	case r.BlockHeight < other.BlockHeight:
		return -1
	case r.BlockHeight > other.BlockHeight:
		return 1
	case r.TxIndex < other.TxIndex:
		return -1
	case r.TxIndex > other.TxIndex:
		return 1
	}
	return 0
}

// Delta calculates the delta encoding between two RuneIds. If the two RuneIds are in the same block, then the block delta is 0 and the tx index delta is the difference between the two tx indices.
// If the two RuneIds are in different blocks, then the block delta is the difference between the two block indices and the tx index delta is the tx index in the other block.
func (r RuneId) Delta(next RuneId) (uint64, uint32) {
	blockDelta := next.BlockHeight - r.BlockHeight
	if blockDelta == 0 {
		return 0, next.TxIndex - r.TxIndex
	}
	return blockDelta, next.TxIndex
}

var ErrRuneIdOverflow = errors.New("rune id overflow")

// Next calculates the next RuneId given a block delta and tx index delta.
func (r RuneId) Next(blockDelta uint64, txIndexDelta uint32) (RuneId, error) {
	if blockDelta == 0 {
		txIndex := r.TxIndex + txIndexDelta
		if txIndex < r.TxIndex {
			return RuneId{}, errors.WithStack(ErrRuneIdOverflow)
		}
		return NewRuneId(r.BlockHeight, txIndex)
	}
	blockHeight := r.BlockHeight + blockDelta
	if blockHeight < r.BlockHeight {
		return RuneId{}, errors.WithStack(ErrRuneIdOverflow)
	}
	return NewRuneId(blockHeight, txIndexDelta)
}

// MarshalJSON implements json.Marshaler
func (r RuneId) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *RuneId) UnmarshalJSON(data []byte) error {
	// data must be quoted
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("must be string")
	}
	parsed, err := NewRuneIdFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return errors.WithStack(err)
	}
	*r = parsed
	return nil
}
