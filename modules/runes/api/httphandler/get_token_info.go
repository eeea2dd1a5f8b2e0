package httphandler

import (
	"net/url"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/modules/runes/runes"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type getTokenInfoRequest struct {
	Id string `params:"id"`
}

func (r *getTokenInfoRequest) Validate() error {
	id, err := url.QueryUnescape(r.Id)
	if err != nil {
		return errs.WithPublicMessage(err, "validation error")
	}
	r.Id = id
	if r.Id == "" {
		return errs.NewPublicError("validation error: 'id' is required")
	}
	return nil
}

type entryTerms struct {
	Amount      *amount `json:"amount"`
	Cap         *string `json:"cap"`
	HeightStart *uint64 `json:"heightStart"`
	HeightEnd   *uint64 `json:"heightEnd"`
	OffsetStart *uint64 `json:"offsetStart"`
	OffsetEnd   *uint64 `json:"offsetEnd"`
}

type tokenInfo struct {
	Id                runes.RuneId `json:"id"`
	Number            uint64       `json:"number"`
	Name              string       `json:"name"`
	Symbol            string       `json:"symbol"`
	Decimals          uint8        `json:"decimals"`
	Premine           amount       `json:"premine"`
	TotalSupply       amount       `json:"totalSupply"`
	MintedAmount      amount       `json:"mintedAmount"`
	BurnedAmount      amount       `json:"burnedAmount"`
	CirculatingSupply amount       `json:"circulatingSupply"`
	Mints             string       `json:"mints"`
	Terms             *entryTerms  `json:"terms"`
	Turbo             bool         `json:"turbo"`
	Cenotaph          bool         `json:"cenotaph"`
	EtchingTxHash     string       `json:"etchingTxHash"`
	DeployedAt        int64        `json:"deployedAt"` // unix timestamp
	DeployedAtHeight  uint64       `json:"deployedAtHeight"`
}

type getTokenInfoResponse = HttpResponse[tokenInfo]

func (h *HttpHandler) GetTokenInfo(ctx *fiber.Ctx) (err error) {
	var req getTokenInfoRequest
	if err := ctx.ParamsParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}

	runeEntry, err := h.usecase.GetRuneEntry(ctx.UserContext(), req.Id)
	if err != nil {
		return errors.Wrap(err, "error during GetRuneEntry")
	}

	info, err := newTokenInfo(runeEntry)
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(ctx.JSON(getTokenInfoResponse{Result: info}))
}

func newTokenInfo(runeEntry *runes.RuneEntry) (*tokenInfo, error) {
	totalSupply, err := runeEntry.Supply()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get total supply of rune")
	}
	mintedAmount, err := runeEntry.MintedAmount()
	if err != nil {
		return nil, errors.Wrap(err, "cannot get minted amount of rune")
	}
	circulatingSupply := mintedAmount.Sub(runeEntry.BurnedAmount)

	var terms *entryTerms
	if runeEntry.Terms != nil {
		terms = &entryTerms{
			HeightStart: runeEntry.Terms.HeightStart,
			HeightEnd:   runeEntry.Terms.HeightEnd,
			OffsetStart: runeEntry.Terms.OffsetStart,
			OffsetEnd:   runeEntry.Terms.OffsetEnd,
		}
		if runeEntry.Terms.Amount != nil {
			terms.Amount = lo.ToPtr(newAmount(*runeEntry.Terms.Amount, runeEntry))
		}
		if runeEntry.Terms.Cap != nil {
			terms.Cap = lo.ToPtr(runeEntry.Terms.Cap.String())
		}
	}

	return &tokenInfo{
		Id:                runeEntry.RuneId,
		Number:            runeEntry.Number,
		Name:              runeEntry.SpacedRune.String(),
		Symbol:            string(runeEntry.Symbol),
		Decimals:          runeEntry.Divisibility,
		Premine:           newAmount(runeEntry.Premine, runeEntry),
		TotalSupply:       newAmount(totalSupply, runeEntry),
		MintedAmount:      newAmount(mintedAmount, runeEntry),
		BurnedAmount:      newAmount(runeEntry.BurnedAmount, runeEntry),
		CirculatingSupply: newAmount(circulatingSupply, runeEntry),
		Mints:             runeEntry.Mints.String(),
		Terms:             terms,
		Turbo:             runeEntry.Turbo,
		Cenotaph:          runeEntry.Cenotaph,
		EtchingTxHash:     runeEntry.EtchingTxId.String(),
		DeployedAt:        runeEntry.EtchedAt.Unix(),
		DeployedAtHeight:  runeEntry.EtchingBlock,
	}, nil
}
