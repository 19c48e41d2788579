package payments

import (
	"restoran-pos/internal/apperror"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/logger"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// POST /api/orders/:id/pay (kasiyer, yönetici)
func (h *Handler) Settle() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz sipariş ID")
		}

		var body SettleInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}
		body.ActorID = auth.ActorID(c)

		res, err := h.svc.SettlePayment(c.UserContext(), client.ID, uint(id), body)
		if err != nil {
			return err
		}

		logger.FromCtx(c).Info("ödeme alındı",
			zap.Uint("order_id", res.Order.ID),
			zap.String("method", string(res.Payment.Method)),
			zap.String("amount", res.Payment.Amount.StringFixed(2)),
		)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}
