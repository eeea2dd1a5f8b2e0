package common

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/stretchr/testify/assert"
)

func TestGenesisHeight(t *testing.T) {
	t.Run("mainnet", func(t *testing.T) {
		height, err := NetworkMainnet.GenesisHeight()
		assert.NoError(t, err)
		assert.Equal(t, uint64(840_000), height)
	})

	for _, network := range []Network{NetworkTestnet, NetworkTestnet4, NetworkSignet, NetworkRegtest} {
		network := network
		t.Run(network.String(), func(t *testing.T) {
			_, err := network.GenesisHeight()
			assert.Error(t, err)
			assert.True(t, errors.Is(err, errs.Unsupported))
			assert.False(t, network.IsSupported())
			assert.True(t, network.IsKnown())
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := Network("liquid").GenesisHeight()
		assert.True(t, errors.Is(err, errs.InvalidArgument))
	})
}
