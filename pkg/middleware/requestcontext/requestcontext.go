// Package requestcontext copies per-request values from fiber into the request's context.Context,
// so usecases and loggers further down can read them without depending on fiber.
package requestcontext

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/common"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
)

// Option enriches ctx from the request. Returning a *rejection ends the request with its status.
type Option func(ctx context.Context, c *fiber.Ctx) (context.Context, error)

// rejection is returned by an Option to refuse the request without logging it as a failure.
type rejection struct {
	status  int
	message string
}

func (r *rejection) Error() string {
	return r.message
}

func New(opts ...Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for i, opt := range opts {
			var err error
			ctx, err = opt(ctx, c)
			if err == nil {
				continue
			}
			if r := new(rejection); errors.As(err, &r) {
				return errors.WithStack(c.Status(r.status).JSON(common.NewHttpErrorResponse(r.message)))
			}
			logger.ErrorContext(c.UserContext(), "Failed to set up request context",
				slogx.Error(err),
				slogx.String("event", "requestcontext/error"),
				slogx.Int("option", i),
			)
			return errors.WithStack(c.Status(http.StatusInternalServerError).JSON(common.NewHttpErrorResponse("Internal Server Error")))
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}
