package tenant

import (
	"restoran-pos/internal/apperror"
	"restoran-pos/internal/logger"
	"restoran-pos/internal/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	// Personel JWT'sinden gelen işletme; auth middleware'i doldurur
	CtxStaffClientIDKey = "staff_client_id"
	CtxClientKey        = "client"

	HeaderSlug = "X-Tenant-Slug"
	CookieSlug = "tenant"
)

// Middleware işletmeyi çözer ve Locals'a koyar. Personel token'ı varsa
// token'daki client_id esas alınır; yoksa müşteri isteğindeki slug kullanılır.
// İstek gövdesindeki işletme bilgisi hiçbir zaman dikkate alınmaz.
func Middleware(r *Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			client *models.Client
			err    error
		)

		if id, ok := c.Locals(CtxStaffClientIDKey).(uint); ok && id != 0 {
			client, err = r.ByID(c.UserContext(), id)
		} else {
			slug := c.Get(HeaderSlug)
			if slug == "" {
				slug = c.Cookies(CookieSlug)
			}
			client, err = r.BySlug(c.UserContext(), slug)
		}
		if err != nil {
			return err
		}

		c.Locals(CtxClientKey, client)
		c.Locals(logger.CtxLoggerKey, logger.FromCtx(c).With(zap.Uint("client_id", client.ID)))
		return c.Next()
	}
}

// FromCtx çözülmüş işletmeyi döner
func FromCtx(c *fiber.Ctx) (*models.Client, error) {
	client, ok := c.Locals(CtxClientKey).(*models.Client)
	if !ok || client == nil {
		return nil, apperror.ErrAuthRequired
	}
	return client, nil
}
