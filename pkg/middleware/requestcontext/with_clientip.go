package requestcontext

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/cockroachdb/errors"
	"github.com/gaze-network/runes-ledger/pkg/logger"
	"github.com/gaze-network/runes-ledger/pkg/logger/slogx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type clientIPKey struct{}

type ClientIPConfig struct {
	// TrustedHeader names a header set by the edge proxy (e.g. CF-Connecting-IP). A valid IP in it wins over everything else.
	TrustedHeader string `mapstructure:"trusted_proxies_header"`

	// TrustedProxiesIP lists the CIDR ranges of every proxy between the client and the server.
	// X-Forwarded-For is walked from the right and the first address outside these ranges is the client.
	TrustedProxiesIP []string `mapstructure:"trusted_proxies_ip"`

	// EnableRejectMalformedRequest answers 403 when X-Forwarded-For is present but no proxy ranges are trusted.
	EnableRejectMalformedRequest bool `mapstructure:"enable_reject_malformed_request"`
}

// GetClientIP returns an empty string outside of a request set up by WithClientIP.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithClientIP resolves the client address while ignoring X-Forwarded-For entries a client could spoof.
func WithClientIP(config ClientIPConfig) (Option, error) {
	trusted := make([]netip.Prefix, 0, len(config.TrustedProxiesIP))
	for _, cidr := range config.TrustedProxiesIP {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid trusted proxy range %q", cidr)
		}
		trusted = append(trusted, prefix.Masked())
	}
	isTrusted := func(addr netip.Addr) bool {
		return lo.ContainsBy(trusted, func(p netip.Prefix) bool { return p.Contains(addr) })
	}

	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		withIP := func(ip string) context.Context { return context.WithValue(ctx, clientIPKey{}, ip) }

		if config.TrustedHeader != "" {
			if addr, err := netip.ParseAddr(c.Get(config.TrustedHeader)); err == nil {
				return withIP(addr.String()), nil
			}
		}

		forwarded := c.IPs()
		if len(forwarded) == 0 {
			return withIP(c.IP()), nil
		}

		if len(trusted) > 0 {
			for i := len(forwarded) - 1; i >= 0; i-- {
				addr, err := netip.ParseAddr(forwarded[i])
				if err != nil || !isTrusted(addr.Unmap()) {
					return withIP(forwarded[i]), nil
				}
			}
			return withIP(forwarded[0]), nil
		}

		if config.EnableRejectMalformedRequest {
			logger.WarnContext(ctx, "Rejected request with untrusted X-Forwarded-For",
				slogx.String("event", "requestcontext/ip_spoofing_detected"),
				slogx.String("ip", c.IP()),
				slogx.Any("ips", forwarded),
			)
			return nil, &rejection{status: http.StatusForbidden, message: "not allowed to access"}
		}
		return withIP(forwarded[0]), nil
	}, nil
}
