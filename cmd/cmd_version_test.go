package cmd

import (
	"bytes"
	"testing"

	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCommand(t *testing.T) {
	testCases := []struct {
		args     []string
		expected string
	}{
		{nil, Version + "\n"},
		{[]string{"--module", "runes"}, runes.Version + "\n"},
	}
	for _, tc := range testCases {
		var out bytes.Buffer
		cmd := NewVersionCommand()
		cmd.SetOut(&out)
		cmd.SetArgs(tc.args)
		require.NoError(t, cmd.Execute())
		assert.Equal(t, tc.expected, out.String())
	}

	cmd := NewVersionCommand()
	cmd.SetArgs([]string{"--module", "brc20"})
	cmd.SilenceUsage, cmd.SilenceErrors = true, true
	assert.ErrorIs(t, cmd.Execute(), errs.Unsupported)
}
