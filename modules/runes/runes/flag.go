package runes

import "github.com/gaze-network/uint128"

// Flag represents a single flag that can be set on a runestone.
type Flag uint8

const (
	FlagEtching  = Flag(0)
	FlagTerms    = Flag(1)
	FlagTurbo    = Flag(2)
	FlagCenotaph = Flag(127)
)

func (f Flag) Mask() Flags {
	return Flags(uint128.From64(1).Lsh(uint(f)))
}

// Flags is a bitmask of flags that can be set on a runestone.
type Flags uint128.Uint128

func (f Flags) Uint128() uint128.Uint128 {
	return uint128.Uint128(f)
}

func (f Flags) And(other Flags) Flags {
	return Flags(f.Uint128().And(other.Uint128()))
}

func (f Flags) Or(other Flags) Flags {
	return Flags(f.Uint128().Or(other.Uint128()))
}

func (f Flags) IsZero() bool {
	return f.Uint128().IsZero()
}

// Take reports whether flag is set and clears it.
func (f *Flags) Take(flag Flag) bool {
	found := !f.And(flag.Mask()).Uint128().IsZero()
	if found {
		*f = Flags(f.Uint128().Sub(flag.Mask().Uint128()))
	}
	return found
}

func (f *Flags) Set(flag Flag) {
	*f = f.Or(flag.Mask())
}
