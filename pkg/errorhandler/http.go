package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/common/errs"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
)

func NewHTTPErrorHandler() func(ctx *fiber.Ctx, err error) error {
	return func(ctx *fiber.Ctx, err error) error {
		if e := new(errs.PublicError); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(common.NewHttpErrorResponse(e.Message())))
		}
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).JSON(common.NewHttpErrorResponse(e.Message)))
		}
		switch {
		case errors.Is(err, errs.NotFound):
			return errors.WithStack(ctx.Status(http.StatusNotFound).JSON(common.NewHttpErrorResponse("Not Found")))
		case errors.Is(err, errs.InvalidArgument):
			return errors.WithStack(ctx.Status(http.StatusBadRequest).JSON(common.NewHttpErrorResponse("Invalid Argument")))
		}

		logger.ErrorContext(ctx.UserContext(), "Something went wrong, unhandled api error",
			slogx.String("event", "api_unhandled_error"),
			slogx.Error(err),
		)

		return errors.WithStack(ctx.Status(http.StatusInternalServerError).JSON(common.NewHttpErrorResponse("Internal Server Error")))
	}
}
