package tables

import (
	"errors"

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

type AssignWaiterRequest struct {
	StaffID *uint `json:"staff_id"`
}

// POST /api/tables/claim
// DIRTY ve RACE_CONDITION beklenen sonuçlardır; istemci "status" alanına göre
// "lütfen bekleyin / başka masa deneyin" mesajı gösterir.
func (h *Handler) Claim() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		var body ClaimInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}
		body.ActorID = auth.ActorID(c)

		res, err := h.svc.ClaimTable(c.UserContext(), client.ID, body)
		if err != nil {
			var appErr *apperror.Error
			if errors.As(err, &appErr) && (appErr.Code == apperror.CodeTableDirty || appErr.Code == apperror.CodeRaceCondition) {
				logger.FromCtx(c).Info("masa alınamadı",
					zap.String("table_code", body.TableCode),
					zap.String("status", string(appErr.Code)),
				)
				return c.Status(appErr.HTTPStatus()).JSON(fiber.Map{
					"status": appErr.Code,
					"code":   appErr.Code,
					"error":  appErr.Message,
				})
			}
			return err
		}
		return c.JSON(res)
	}
}

// GET /api/tables?status=ACTIVE
func (h *Handler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		list, err := h.svc.ListTables(c.UserContext(), client.ID, c.Query("status"))
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

// POST /api/tables (yönetici)
func (h *Handler) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		var body CreateTableInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}
		table, err := h.svc.CreateTable(c.UserContext(), client.ID, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(table)
	}
}

// GET /api/tables/:id
func (h *Handler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, id, err := tableParams(c)
		if err != nil {
			return err
		}
		table, err := h.svc.GetTable(c.UserContext(), client, id)
		if err != nil {
			return err
		}
		return c.JSON(table)
	}
}

// DELETE /api/tables/:id (yönetici)
func (h *Handler) Delete() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, id, err := tableParams(c)
		if err != nil {
			return err
		}
		if err := h.svc.DeleteTable(c.UserContext(), client, id); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/tables/:id/reset (yönetici)
func (h *Handler) Reset() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, id, err := tableParams(c)
		if err != nil {
			return err
		}
		table, err := h.svc.ResetTable(c.UserContext(), id, client, auth.ActorID(c))
		if err != nil {
			return err
		}
		logger.FromCtx(c).Warn("masa sıfırlandı", zap.Uint("table_id", id))
		return c.JSON(table)
	}
}

// POST /api/tables/:id/clean
func (h *Handler) Clean() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, id, err := tableParams(c)
		if err != nil {
			return err
		}
		table, err := h.svc.MarkClean(c.UserContext(), client, id, auth.ActorID(c))
		if err != nil {
			return err
		}
		return c.JSON(table)
	}
}

// PATCH /api/tables/:id/waiter (yönetici)
func (h *Handler) AssignWaiter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, id, err := tableParams(c)
		if err != nil {
			return err
		}
		var body AssignWaiterRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}
		table, err := h.svc.AssignWaiter(c.UserContext(), client, id, body.StaffID)
		if err != nil {
			return err
		}
		return c.JSON(table)
	}
}

func tableParams(c *fiber.Ctx) (uint, uint, error) {
	client, err := tenant.FromCtx(c)
	if err != nil {
		return 0, 0, err
	}
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, 0, apperror.New(apperror.CodeInvalidInput, "Geçersiz masa ID")
	}
	return client.ID, uint(id), nil
}
