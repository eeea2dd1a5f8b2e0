package common

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
)

type Network string

const (
	NetworkMainnet  Network = "mainnet"
	NetworkTestnet  Network = "testnet"
	NetworkTestnet4 Network = "testnet4"
	NetworkSignet   Network = "signet"
	NetworkRegtest  Network = "regtest"
)

// HalvingInterval is the number of blocks between block subsidy halvings.
const HalvingInterval = 210_000

// genesisHeights holds the block height at which the runes protocol activates.
// Networks without an entry have no activation policy yet.
var genesisHeights = map[Network]uint64{
	NetworkMainnet: HalvingInterval * 4, // 840,000
}

var chainParams = map[Network]*chaincfg.Params{
	NetworkMainnet:  &chaincfg.MainNetParams,
	NetworkTestnet:  &chaincfg.TestNet3Params,
	NetworkTestnet4: &chaincfg.TestNet3Params,
	NetworkSignet:   &chaincfg.SigNetParams,
	NetworkRegtest:  &chaincfg.RegressionNetParams,
}

// IsKnown reports whether n is one of the declared network variants.
func (n Network) IsKnown() bool {
	_, ok := chainParams[n]
	return ok
}

// IsSupported reports whether the indexer can run against n.
func (n Network) IsSupported() bool {
	_, ok := genesisHeights[n]
	return ok
}

// GenesisHeight returns the runes protocol activation height of the network.
// Known networks without an activation policy return errs.Unsupported.
func (n Network) GenesisHeight() (uint64, error) {
	if !n.IsKnown() {
		return 0, errors.Wrapf(errs.InvalidArgument, "unknown network %q", n.String())
	}
	height, ok := genesisHeights[n]
	if !ok {
		return 0, errors.Wrapf(errs.Unsupported, "runes genesis height is not defined for network %q", n.String())
	}
	return height, nil
}

func (n Network) ChainParams() *chaincfg.Params {
	return chainParams[n]
}

func (n Network) String() string {
	return string(n)
}
