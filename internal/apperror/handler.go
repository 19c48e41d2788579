package apperror

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// FiberErrorHandler domain hatalarını kodu koruyarak JSON'a çevirir
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Code == CodeInternal {
			zap.L().Error("internal error",
				zap.String("path", c.Path()),
				zap.Error(err),
			)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"code":  CodeInternal,
				"error": "Beklenmeyen sunucu hatası",
			})
		}
		return c.Status(ae.HTTPStatus()).JSON(fiber.Map{
			"code":  ae.Code,
			"error": ae.Message,
		})
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fe.Message,
		})
	}

	zap.L().Error("unexpected error", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"code":  CodeInternal,
		"error": "Beklenmeyen sunucu hatası",
	})
}
