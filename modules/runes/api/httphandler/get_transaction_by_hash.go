package httphandler

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/entity"
	"github.com/gofiber/fiber/v2"
)

type getTransactionByHashRequest struct {
	TxHash string `params:"txHash"`
}

func (r getTransactionByHashRequest) Validate() error {
	if _, err := chainhash.NewHashFromStr(r.TxHash); err != nil || len(r.TxHash) != chainhash.MaxHashStringSize {
		return errs.NewPublicError("validation error: 'txHash' is not a valid transaction hash")
	}
	return nil
}

type ledgerEntry struct {
	runeRef
	Operation entity.LedgerOperation `json:"operation"`
	Amount    amount                 `json:"amount"`
	Output    *uint32                `json:"output"`
	PkScript  *string                `json:"pkScript"`
	Address   string                 `json:"address,omitempty"`
}

type getTransactionByHashResult struct {
	TxHash      string        `json:"txHash"`
	BlockHeight uint64        `json:"blockHeight"`
	Index       uint32        `json:"index"`
	Timestamp   int64         `json:"timestamp"`
	Entries     []ledgerEntry `json:"entries"`
}

type getTransactionByHashResponse = HttpResponse[getTransactionByHashResult]

func (h *HttpHandler) GetTransactionByHash(ctx *fiber.Ctx) (err error) {
	var req getTransactionByHashRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	txHash, _ := chainhash.NewHashFromStr(req.TxHash)
	entries, runeEntries, err := h.usecase.GetLedgerEntriesByTxId(ctx.UserContext(), *txHash)
	if err != nil {
		return errors.Wrap(err, "error during GetLedgerEntriesByTxId")
	}

	first := entries[0]
	result := &getTransactionByHashResult{
		TxHash:      first.TxId.String(),
		BlockHeight: first.BlockHeight,
		Index:       first.TxIndex,
		Timestamp:   first.Timestamp.Unix(),
		Entries:     make([]ledgerEntry, 0, len(entries)),
	}
	for _, e := range entries {
		runeEntry := runeEntries[e.RuneId]
		item := ledgerEntry{
			runeRef:   newRuneRef(e.RuneId, runeEntry),
			Operation: e.Operation,
			Amount:    newAmount(e.Amount, runeEntry),
			Output:    e.Output,
		}
		if len(e.PkScript) > 0 {
			pkScript := hex.EncodeToString(e.PkScript)
			item.PkScript = &pkScript
			item.Address = addressFromPkScript(e.PkScript, h.network)
		}
		result.Entries = append(result.Entries, item)
	}

	return errors.WithStack(ctx.JSON(getTransactionByHashResponse{Result: result}))
}
