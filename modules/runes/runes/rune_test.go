package runes

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/uint128"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuneString(t *testing.T) {
	testCases := []struct {
		value uint128.Uint128
		name  string
	}{
		{uint128.From64(26), "AA"},
		{uint128.From64(27), "AB"},
		{uint128.From64(51), "AZ"},
		{uint128.From64(52), "BA"},
		{uint128.From64(53), "BB"},
		{utils.Must(uint128.FromString("2055900680524219742")), "UNCOMMONGOODS"},
		{uint128.Max.Sub64(2), "BCGDENLQRQWDSLRUGSNLBTMFIJAT"},
		{uint128.Max.Sub64(1), "BCGDENLQRQWDSLRUGSNLBTMFIJAU"},
		{uint128.Max, "BCGDENLQRQWDSLRUGSNLBTMFIJAV"},
	}
	// every single letter
	for i := 0; i < 26; i++ {
		testCases = append(testCases, struct {
			value uint128.Uint128
			name  string
		}{uint128.From64(uint64(i)), string(rune('A' + i))})
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRuneFromUint128(tc.value)
			assert.Equal(t, tc.name, r.String())

			parsed, err := NewRuneFromString(tc.name)
			require.NoError(t, err)
			assert.Equal(t, r, parsed)
		})
	}
}

func TestNewRuneFromStringErrors(t *testing.T) {
	for input, expected := range map[string]error{
		"?":                            ErrInvalidBase26,
		"":                             ErrInvalidBase26,
		"abc":                          ErrInvalidBase26,
		"BCGDENLQRQWDSLRUGSNLBTMFIJAW": errs.OverflowUint128,
	} {
		_, err := NewRuneFromString(input)
		assert.ErrorIs(t, err, expected, "input %q", input)
	}
}

func TestMinimumRuneAtHeightMainnet(t *testing.T) {
	start, err := common.NetworkMainnet.GenesisHeight()
	require.NoError(t, err)
	end := start + common.HalvingInterval
	step := uint64(common.HalvingInterval / 12)

	// first name unlocked at each step boundary, and the one just after it
	unlocked := []struct{ at, next string }{
		{"ZZYZXBRKWXVA", "ZZXZUDIVTVQA"},
		{"ZZYZXBRKWXV", "ZZXZUDIVTVQ"},
		{"ZZYZXBRKWY", "ZZXZUDIVTW"},
		{"ZZYZXBRKX", "ZZXZUDIVU"},
		{"ZZYZXBRL", "ZZXZUDIW"},
		{"ZZYZXBS", "ZZXZUDJ"},
		{"ZZYZXC", "ZZXZUE"},
		{"ZZYZY", "ZZXZV"},
		{"ZZZA", "ZZYA"},
		{"ZZZ", "ZZY"},
	}

	expected := map[uint64]string{
		0:              "AAAAAAAAAAAAA",
		start / 2:      "AAAAAAAAAAAAA",
		end - 1:        "A",
		end:            "A",
		end + 1:        "A",
		math.MaxUint32: "A",

		start + step*10 - 2:      "AAC",
		start + step*10:          "AAA",
		start + step*10 + 1:      "AAA",
		start + step*10 + step/2: "NA",
		start + step*11 - 2:      "AB",
		start + step*11 - 1:      "AA",
		start + step*11:          "AA",
		start + step*11 + step/2: "N",
		start + step*12 - 2:      "B",
	}
	for i, names := range unlocked {
		boundary := start + step*uint64(i)
		// just before a boundary every name of the previous length is still locked
		expected[boundary-1] = strings.Repeat("A", 13-i)
		expected[boundary] = names.at
		expected[boundary+1] = names.next
	}
	expected[start+step*10-1] = "AAA"

	for height, name := range expected {
		t.Run(strconv.FormatUint(height, 10), func(t *testing.T) {
			assert.Equal(t, name, MinimumRuneAtHeight(start, height).String())
		})
	}
}

func TestMinimumRuneAtHeightCustomActivation(t *testing.T) {
	const start = uint64(2_520_000)

	assert.Equal(t, "AAAAAAAAAAAAA", MinimumRuneAtHeight(start, start-2).String())
	assert.Equal(t, "ZZYZXBRKWXVA", MinimumRuneAtHeight(start, start).String())
	assert.Equal(t, "ZZXZUDIVTVQA", MinimumRuneAtHeight(start, start+1).String())
}

func TestIsReserved(t *testing.T) {
	for name, reserved := range map[string]bool{
		"A":                            false,
		"B":                            false,
		"ZZZZZZZZZZZZZZZZZZZZZZZZZZ":   false,
		"AAAAAAAAAAAAAAAAAAAAAAAAAAA":  true,
		"AAAAAAAAAAAAAAAAAAAAAAAAAAB":  true,
		"BCGDENLQRQWDSLRUGSNLBTMFIJAV": true,
	} {
		r, err := NewRuneFromString(name)
		require.NoError(t, err)
		assert.Equal(t, reserved, r.IsReserved(), name)
	}
}

func TestGetReservedRune(t *testing.T) {
	offset := func(height uint64, txIndex uint32) string {
		delta := uint128.From64(height).Lsh(32).Add(uint128.From64(uint64(txIndex)))
		return Rune(firstReservedRune.Uint128().Add(delta)).String()
	}

	for _, height := range []uint64{0, 1, 2, math.MaxUint64} {
		for _, txIndex := range []uint32{0, 1, 2, math.MaxUint32} {
			assert.Equal(t, offset(height, txIndex), GetReservedRune(height, txIndex).String(), "%d:%d", height, txIndex)
		}
	}
	assert.Equal(t, firstReservedRune, GetReservedRune(0, 0))
	assert.True(t, GetReservedRune(840000, 1).IsReserved())
}

func TestUnlockSteps(t *testing.T) {
	for i, step := range unlockSteps {
		assert.Equal(t, strings.Repeat("A", i+1), Rune(step).String())
	}
}

func TestRuneJSON(t *testing.T) {
	raw, err := NewRune(5).MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `"F"`, string(raw))

	var r Rune
	require.NoError(t, r.UnmarshalJSON([]byte(`"UNCOMMONGOODS"`)))
	assert.Equal(t, "UNCOMMONGOODS", r.String())

	assert.Error(t, r.UnmarshalJSON([]byte(`1`)))
}
