package httphandler

import (
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gaze-network/runes-ledger/modules/runes/usecase"
	"github.com/gaze-network/runes-ledger/pkg/btcutils"
	"github.com/gaze-network/runes-ledger/pkg/decimals"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gaze-network/uint128"
)

type HttpHandler struct {
	usecase *usecase.Usecase
	network common.Network
}

func New(network common.Network, usecase *usecase.Usecase) *HttpHandler {
	return &HttpHandler{
		usecase: usecase,
		network: network,
	}
}

type HttpResponse[T any] common.HttpResponse[T]

// addressFromPkScript returns an empty string if pkScript is not a standard single-address script.
func addressFromPkScript(pkScript []byte, network common.Network) string {
	address, err := btcutils.PkScriptToAddress(pkScript, network)
	if err != nil {
		logger.Debug("unable to extract address from pkscript", slogx.Error(err))
		return ""
	}
	return address
}

// amount carries the raw unit count and its decimal rendering. Both are strings since values exceed 2^53.
type amount struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

func newAmount(value uint128.Uint128, runeEntry *runes.RuneEntry) amount {
	var divisibility uint8
	if runeEntry != nil {
		divisibility = runeEntry.Divisibility
	}
	return amount{
		Value:   value.String(),
		Display: decimals.ToDecimal(value, divisibility).String(),
	}
}

type runeRef struct {
	Id     runes.RuneId `json:"id"`
	Name   string       `json:"name"`
	Symbol string       `json:"symbol"`
}

func newRuneRef(runeId runes.RuneId, runeEntry *runes.RuneEntry) runeRef {
	ref := runeRef{Id: runeId}
	if runeEntry != nil {
		ref.Name = runeEntry.SpacedRune.String()
		ref.Symbol = string(runeEntry.Symbol)
	}
	return ref
}
