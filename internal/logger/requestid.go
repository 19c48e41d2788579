package logger

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RequestID her isteğe bir X-Request-ID atar
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set("X-Request-ID", rid)
		c.Locals(CtxRequestIDKey, rid)
		return c.Next()
	}
}
