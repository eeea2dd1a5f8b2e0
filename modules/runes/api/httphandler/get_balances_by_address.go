package httphandler

import (
	"encoding/hex"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/pkg/btcutils"
	"github.com/gofiber/fiber/v2"
)

type getBalancesByAddressRequest struct {
	Wallet string `params:"wallet"`
}

func (r getBalancesByAddressRequest) Validate() error {
	if r.Wallet == "" {
		return errs.NewPublicError("validation error: 'wallet' is required")
	}
	return nil
}

type balance struct {
	runeRef
	Amount   amount `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

type getBalancesByAddressResult struct {
	PkScript string    `json:"pkScript"`
	Address  string    `json:"address"`
	List     []balance `json:"list"`
}

type getBalancesByAddressResponse = HttpResponse[getBalancesByAddressResult]

func (h *HttpHandler) GetBalancesByAddress(ctx *fiber.Ctx) (err error) {
	var req getBalancesByAddressRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	pkScript, err := btcutils.ToPkScript(h.network, req.Wallet)
	if err != nil || len(pkScript) == 0 {
		return errs.NewPublicError("unable to resolve pkscript from \"wallet\"")
	}

	balances, runeEntries, err := h.usecase.GetBalancesByPkScript(ctx.UserContext(), pkScript)
	if err != nil {
		return errors.Wrap(err, "error during GetBalancesByPkScript")
	}

	list := make([]balance, 0, len(balances))
	for _, b := range balances {
		runeEntry := runeEntries[b.RuneId]
		list = append(list, balance{
			runeRef:  newRuneRef(b.RuneId, runeEntry),
			Amount:   newAmount(b.Amount, runeEntry),
			Decimals: divisibilityOf(runeEntry),
		})
	}

	resp := getBalancesByAddressResponse{
		Result: &getBalancesByAddressResult{
			PkScript: hex.EncodeToString(pkScript),
			Address:  addressFromPkScript(pkScript, h.network),
			List:     list,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
