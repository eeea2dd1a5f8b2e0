package requestcontext

import (
	"context"

	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberutils "github.com/gofiber/fiber/v2/utils"
)

type requestIdKey struct{}

// GetRequestId returns an empty string outside of a request set up by WithRequestId.
func GetRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey{}).(string)
	return id
}

// WithRequestId reuses the id assigned by fiber's requestid middleware, or the client's X-Request-ID
// header, or a new UUID. The id is echoed in the response and attached to every log line of the request.
func WithRequestId() Option {
	header, localsKey := requestid.ConfigDefault.Header, requestid.ConfigDefault.ContextKey
	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		id, _ := c.Locals(localsKey).(string)
		if id == "" {
			id = c.Get(header, fiberutils.UUID())
			c.Set(header, id)
			c.Locals(localsKey, id)
		}
		ctx = context.WithValue(ctx, requestIdKey{}, id)
		return logger.WithContext(ctx, "requestId", id), nil
	}
}
