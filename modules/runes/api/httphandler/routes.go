package httphandler

import (
	"github.com/gofiber/fiber/v2"
)

func (h *HttpHandler) Mount(router fiber.Router) error {
	r := router.Group("/v1/runes")

	r.Get("/block", h.GetCurrentBlock)
	r.Get("/tokens", h.GetTokenList)
	r.Get("/info/:id", h.GetTokenInfo)
	r.Get("/outpoint/:txHash/:index", h.GetOutPointBalances)
	r.Get("/balances/wallet/:wallet", h.GetBalancesByAddress)
	r.Get("/transactions/:txHash", h.GetTransactionByHash)
	return nil
}
