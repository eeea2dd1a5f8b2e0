package btcutils

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
)

// ToPkScript converts an address of network or a hex-encoded pkscript to pkscript bytes.
func ToPkScript(network common.Network, from string) ([]byte, error) {
	if from == "" {
		return nil, errors.Wrap(errs.InvalidArgument, "empty input")
	}
	if !network.IsKnown() {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid network %q", network)
	}

	// attempt to parse as address
	address, err := btcutil.DecodeAddress(from, network.ChainParams())
	if err == nil {
		if !address.IsForNet(network.ChainParams()) {
			return nil, errors.Wrapf(errs.InvalidArgument, "address %q is not for network %q", from, network)
		}
		pkScript, err := txscript.PayToAddrScript(address)
		if err != nil {
			return nil, errors.Wrap(errors.Join(err, errs.InvalidArgument), "error converting address to pkscript")
		}
		return pkScript, nil
	}

	// attempt to parse as pkscript
	pkScript, err := hex.DecodeString(from)
	if err != nil {
		return nil, errors.Wrap(errors.Join(err, errs.InvalidArgument), "error decoding pkscript")
	}
	return pkScript, nil
}

// PkScriptToAddress returns the address of a standard single-address pkScript.
func PkScriptToAddress(pkScript []byte, network common.Network) (string, error) {
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(pkScript, network.ChainParams())
	if err != nil {
		return "", errors.Wrap(err, "error extracting addresses from pkscript")
	}
	if len(addrs) != 1 {
		return "", errors.Wrapf(errs.InvalidArgument, "expected 1 address from pkscript, got %d", len(addrs))
	}
	return addrs[0].EncodeAddress(), nil
}
