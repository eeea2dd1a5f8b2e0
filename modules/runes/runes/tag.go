package runes

import "github.com/gaze-network/uint128"

// Tags represent data fields in a runestone. Unrecognized odd tags are ignored. Unrecognized even tags produce a cenotaph.
type Tag uint128.Uint128

func (t Tag) Uint128() uint128.Uint128 {
	return uint128.Uint128(t)
}

func (t Tag) IsEven() bool {
	return t.Uint128().Lo%2 == 0
}

var (
	TagBody        = Tag(uint128.From64(0))
	TagFlags       = Tag(uint128.From64(2))
	TagRune        = Tag(uint128.From64(4))
	TagPremine     = Tag(uint128.From64(6))
	TagCap         = Tag(uint128.From64(8))
	TagAmount      = Tag(uint128.From64(10))
	TagHeightStart = Tag(uint128.From64(12))
	TagHeightEnd   = Tag(uint128.From64(14))
	TagOffsetStart = Tag(uint128.From64(16))
	TagOffsetEnd   = Tag(uint128.From64(18))
	TagMint        = Tag(uint128.From64(20))
	TagPointer     = Tag(uint128.From64(22))
	// TagCenotaph is unrecognized
	TagCenotaph = Tag(uint128.From64(126))

	TagDivisibility = Tag(uint128.From64(1))
	TagSpacers      = Tag(uint128.From64(3))
	TagSymbol       = Tag(uint128.From64(5))
	// TagNop is unrecognized
	TagNop = Tag(uint128.From64(127))
)

// Fields holds the tag/value pairs of a message. Values of a repeated tag are kept in order.
type Fields map[Tag][]uint128.Uint128

// takeField consumes the first n values of tag if with accepts them. Rejected values stay in
// the fields so that an unconsumed even tag still marks the message as a cenotaph.
func takeField[T any](fields Fields, tag Tag, n int, with func(values []uint128.Uint128) (T, bool)) (T, bool) {
	var zero T
	values, ok := fields[tag]
	if !ok || len(values) < n {
		return zero, false
	}
	value, ok := with(values[:n])
	if !ok {
		return zero, false
	}
	if len(values) == n {
		delete(fields, tag)
	} else {
		fields[tag] = values[n:]
	}
	return value, true
}

func (f Fields) HasEvenTag() bool {
	for tag := range f {
		if tag.IsEven() {
			return true
		}
	}
	return false
}
