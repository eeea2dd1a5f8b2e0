package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
)

type getCurrentBlockResult struct {
	Hash      string `json:"hash"`
	Height    uint64 `json:"height"`
	Timestamp int64  `json:"timestamp"`
}

type getCurrentBlockResponse = HttpResponse[getCurrentBlockResult]

func (h *HttpHandler) GetCurrentBlock(ctx *fiber.Ctx) (err error) {
	block, err := h.usecase.GetLatestBlock(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetLatestBlock")
	}

	resp := getCurrentBlockResponse{
		Result: &getCurrentBlockResult{
			Hash:      block.Hash.String(),
			Height:    block.Height,
			Timestamp: block.Timestamp.Unix(),
		},
	}

	return errors.WithStack(ctx.JSON(resp))
}
