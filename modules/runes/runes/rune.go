package runes

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/uint128"
)

// Rune is the numeric value of a rune name, displayed in modified base-26.
type Rune uint128.Uint128

func NewRune(value uint64) Rune {
	return Rune(uint128.From64(value))
}

func NewRuneFromUint128(value uint128.Uint128) Rune {
	return Rune(value)
}

func (r Rune) Uint128() uint128.Uint128 {
	return uint128.Uint128(r)
}

func (r Rune) Cmp(other Rune) int {
	return r.Uint128().Cmp(other.Uint128())
}

var ErrInvalidBase26 = errs.ErrorKind("invalid base-26 character: must be in the range [A-Z]")

// NewRuneFromString parses a rune name in modified base-26 ("A" = 0, "Z" = 25, "AA" = 26).
func NewRuneFromString(value string) (Rune, error) {
	if value == "" {
		return Rune{}, errors.WithStack(ErrInvalidBase26)
	}
	n := uint128.Zero
	for i, char := range value {
		if char < 'A' || char > 'Z' {
			return Rune{}, errors.WithStack(ErrInvalidBase26)
		}
		if i > 0 {
			var overflow bool
			n, overflow = n.AddOverflow(uint128.From64(1))
			if overflow {
				return Rune{}, errors.WithStack(errs.OverflowUint128)
			}
		}
		var overflow bool
		n, overflow = n.MulOverflow(uint128.From64(26))
		if overflow {
			return Rune{}, errors.WithStack(errs.OverflowUint128)
		}
		n, overflow = n.AddOverflow(uint128.From64(uint64(char - 'A')))
		if overflow {
			return Rune{}, errors.WithStack(errs.OverflowUint128)
		}
	}
	return Rune(n), nil
}

// maxRuneName is the encoding of uint128.Max, which cannot be computed through the
// usual value+1 loop.
const maxRuneName = "BCGDENLQRQWDSLRUGSNLBTMFIJAV"

func (r Rune) String() string {
	n := r.Uint128()
	if n.Equals(uint128.Max) {
		return maxRuneName
	}

	n = n.Add64(1)
	var encoded []byte
	for !n.IsZero() {
		quo, rem := n.Sub64(1).QuoRem64(26)
		encoded = append(encoded, byte('A'+rem))
		n = quo
	}
	for i, j := 0, len(encoded)-1; i < j; i, j = i+1, j-1 {
		encoded[i], encoded[j] = encoded[j], encoded[i]
	}
	return string(encoded)
}

// unlockSteps[i] is the smallest rune with i+1 letters.
var unlockSteps = func() []uint128.Uint128 {
	steps := make([]uint128.Uint128, 28)
	for i := 1; i < len(steps); i++ {
		steps[i] = steps[i-1].Add64(1).Mul(uint128.From64(26))
	}
	return steps
}()

// firstReservedRune is "AAAAAAAAAAAAAAAAAAAAAAAAAAA". Runes at or above it are reserved
// for etchings that do not specify a name.
var firstReservedRune = Rune(unlockSteps[26])

func (r Rune) IsReserved() bool {
	return r.Cmp(firstReservedRune) >= 0
}

// GetReservedRune returns the rune assigned to an unnamed etching at the given location.
func GetReservedRune(blockHeight uint64, txIndex uint32) Rune {
	increment := uint128.From64(blockHeight).Lsh(32).Or(uint128.From64(uint64(txIndex)))
	return Rune(firstReservedRune.Uint128().Add(increment))
}

// MinimumRuneAtHeight returns the smallest rune that may be etched at height. Names are
// gradually unlocked over the halving period that starts at the activation height.
func MinimumRuneAtHeight(activationHeight uint64, height uint64) Rune {
	const interval = common.HalvingInterval / 12

	offset := height + 1
	start := activationHeight
	end := start + common.HalvingInterval

	if offset < start {
		return Rune(unlockSteps[12])
	}
	if offset >= end {
		return Rune{}
	}

	progress := offset - start
	length := 12 - progress/interval
	startRune := unlockSteps[length]
	endRune := unlockSteps[length-1] // length > 0 since offset < end
	remainder := progress % interval

	diff := startRune.Sub(endRune).Mul(uint128.From64(remainder))
	quo, _ := diff.QuoRem64(interval)
	return Rune(startRune.Sub(quo))
}

// MarshalJSON implements json.Marshaler
func (r Rune) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (r *Rune) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("must be string")
	}
	parsed, err := NewRuneFromString(string(data[1 : len(data)-1]))
	if err != nil {
		return errors.WithStack(err)
	}
	*r = parsed
	return nil
}
