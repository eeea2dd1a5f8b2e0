package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gofiber/fiber/v2"
)

const (
	getTokenListMaxLimit     = 1000
	getTokenListDefaultLimit = 100
)

type getTokenListRequest struct {
	Limit  int32 `query:"limit"`
	Offset int32 `query:"offset"`
}

func (r *getTokenListRequest) Validate() error {
	var errList []error
	if r.Limit < 0 || r.Limit > getTokenListMaxLimit {
		errList = append(errList, errors.Errorf("'limit' must be between 0 and %d", getTokenListMaxLimit))
	}
	if r.Offset < 0 {
		errList = append(errList, errors.New("'offset' must be non-negative"))
	}
	return errs.WithPublicMessage(errors.Join(errList...), "validation error")
}

type getTokenListResult struct {
	List  []*tokenInfo `json:"list"`
	Total uint64       `json:"total"`
}

type getTokenListResponse = HttpResponse[getTokenListResult]

func (h *HttpHandler) GetTokenList(ctx *fiber.Ctx) (err error) {
	var req getTokenListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errors.WithStack(err)
	}
	if err := req.Validate(); err != nil {
		return errors.WithStack(err)
	}
	if req.Limit == 0 {
		req.Limit = getTokenListDefaultLimit
	}

	runeEntries, total, err := h.usecase.GetRuneEntries(ctx.UserContext(), req.Limit, req.Offset)
	if err != nil {
		return errors.Wrap(err, "error during GetRuneEntries")
	}

	list := make([]*tokenInfo, 0, len(runeEntries))
	for _, runeEntry := range runeEntries {
		info, err := newTokenInfo(runeEntry)
		if err != nil {
			return errors.WithStack(err)
		}
		list = append(list, info)
	}

	resp := getTokenListResponse{
		Result: &getTokenListResult{
			List:  list,
			Total: total,
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
