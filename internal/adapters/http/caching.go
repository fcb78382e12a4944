package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets a default Cache-Control on GET responses that the
// handler left unset.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || len(c.Response().Header.Peek(fiber.HeaderCacheControl)) > 0 {
			return err
		}

		path := c.Path()
		var ttl string
		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"
		case path == "/metrics", strings.HasPrefix(path, "/v1/jobs/"):
			// job status changes while it runs
			ttl = "no-cache"
		case path == "/v1/viewport":
			ttl = "public, max-age=600"
		case strings.HasPrefix(path, "/v1/listings/"):
			ttl = "public, max-age=300"
		case path == "/v1/listings":
			ttl = "public, max-age=60"
		case strings.HasPrefix(path, "/docs"):
			ttl = "public, max-age=3600"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}
