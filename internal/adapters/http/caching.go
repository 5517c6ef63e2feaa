package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses the handler
// left unmarked. Session state and provider positions move every few
// seconds, so only hotspots are cacheable by intermediaries.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet {
			return err
		}
		if c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case strings.HasPrefix(path, "/v1/sessions"):
			ttl = "no-store" // per-rider, changes on every event

		case strings.HasPrefix(path, "/v1/providers"):
			ttl = "no-cache" // positions move every simulator tick

		case strings.HasPrefix(path, "/v1/hotspots"):
			ttl = "public, max-age=30" // matches the hotspot list cache TTL

		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"

		case strings.HasPrefix(path, "/v1/"):
			ttl = "no-cache"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
