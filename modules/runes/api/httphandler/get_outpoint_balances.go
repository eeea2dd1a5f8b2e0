package httphandler

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gofiber/fiber/v2"
)

type getOutPointBalancesRequest struct {
	TxHash string `params:"txHash"`
	Index  uint32 `params:"index"`
}

func (r getOutPointBalancesRequest) Validate() error {
	if _, err := chainhash.NewHashFromStr(r.TxHash); err != nil || len(r.TxHash) != chainhash.MaxHashStringSize {
		return errs.NewPublicError("validation error: 'txHash' is not a valid transaction hash")
	}
	return nil
}

type getOutPointBalancesResult struct {
	TxHash   string    `json:"txHash"`
	Index    uint32    `json:"index"`
	PkScript string    `json:"pkScript"`
	Address  string    `json:"address"`
	List     []balance `json:"list"`
}

type getOutPointBalancesResponse = HttpResponse[getOutPointBalancesResult]

func (h *HttpHandler) GetOutPointBalances(ctx *fiber.Ctx) (err error) {
	var req getOutPointBalancesRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errs.WithPublicMessage(err, "validation error")
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	txHash, _ := chainhash.NewHashFromStr(req.TxHash)
	outPoint := wire.OutPoint{Hash: *txHash, Index: req.Index}
	balances, runeEntries, err := h.usecase.GetOutPointBalances(ctx.UserContext(), outPoint)
	if err != nil {
		return errors.Wrap(err, "error during GetOutPointBalances")
	}

	result := &getOutPointBalancesResult{
		TxHash: outPoint.Hash.String(),
		Index:  outPoint.Index,
		List:   make([]balance, 0, len(balances)),
	}
	for _, b := range balances {
		runeEntry := runeEntries[b.RuneId]
		if result.PkScript == "" {
			result.PkScript = hex.EncodeToString(b.PkScript)
			result.Address = addressFromPkScript(b.PkScript, h.network)
		}
		result.List = append(result.List, balance{
			runeRef:  newRuneRef(b.RuneId, runeEntry),
			Amount:   newAmount(b.Amount, runeEntry),
			Decimals: divisibilityOf(runeEntry),
		})
	}

	return errors.WithStack(ctx.JSON(getOutPointBalancesResponse{Result: result}))
}

func divisibilityOf(runeEntry *runes.RuneEntry) uint8 {
	if runeEntry == nil {
		return 0
	}
	return runeEntry.Divisibility
}
