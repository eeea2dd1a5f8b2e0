package runes

import (
	"github.com/gaze-network/runes-ledger/common"
)

const Version = "v0.1.0"

// startingBlockHash is the hash of the block right below the activation height, the first
// indexed block must extend it.
var startingBlockHash = map[common.Network]string{
	common.NetworkMainnet: "0x0000000000000000000172014ba58d66455762add0512355ad651207918494ab",
}
