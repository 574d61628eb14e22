package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS opens the tracking endpoints to every origin. The snippet runs on
// customer sites, so there is no allowlist to enforce; the cache header must
// be both accepted and exposed for the client to round-trip it.
func CORS(cacheHeader string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, "+cacheHeader)
		c.Set("Access-Control-Expose-Headers", "Content-Length, Content-Type")
		c.Set("Access-Control-Max-Age", "86400")

		if c.Method() == "OPTIONS" {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
