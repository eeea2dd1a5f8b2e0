// Package decimals renders rune amounts, which are unsigned 128-bit integer units, as decimal numbers.
package decimals

import (
	"github.com/gaze-network/uint128"
	"github.com/shopspring/decimal"
)

// ToDecimal shifts value right by divisibility decimal places without rounding.
func ToDecimal(value uint128.Uint128, divisibility uint8) decimal.Decimal {
	return decimal.NewFromBigInt(value.Big(), -int32(divisibility))
}
