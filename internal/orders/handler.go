package orders

import (
	"strconv"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type AddItemsRequest struct {
	Items     []ItemInput `json:"items"`
	SessionID string      `json:"sessionId"`
	Version   *int64      `json:"version"`
}

type StatusRequest struct {
	Status  models.OrderStatus `json:"status"`
	Version *int64             `json:"version"`
}

type ItemStatusRequest struct {
	Status  models.OrderItemStatus `json:"status"`
	Version *int64                 `json:"version"`
}

type RequestBillRequest struct {
	SessionID string `json:"sessionId"`
	Version   *int64 `json:"version"`
}

type DiscountRequest struct {
	Percent decimal.Decimal `json:"percent"`
	Version *int64          `json:"version"`
}

// POST /api/orders
func (h *Handler) Place() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		var body PlaceOrderInput
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		order, err := h.svc.PlaceOrder(c.UserContext(), client.ID, body, Caller{
			ActorID:   auth.ActorID(c),
			SessionID: body.SessionID,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(order)
	}
}

// POST /api/orders/:id/items
func (h *Handler) AddItems() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		var body AddItemsRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		order, err := h.svc.AddItems(c.UserContext(), clientID, orderID, body.Items, Caller{
			ActorID:         auth.ActorID(c),
			SessionID:       body.SessionID,
			ExpectedVersion: body.Version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// GET /api/orders/:id?sessionId=
func (h *Handler) Get() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		order, err := h.svc.GetOrder(c.UserContext(), clientID, orderID, Caller{
			ActorID:   auth.ActorID(c),
			SessionID: c.Query("sessionId"),
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// POST /api/orders/:id/request-bill
func (h *Handler) RequestBill() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		var body RequestBillRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
			}
		}

		order, err := h.svc.UpdateStatus(c.UserContext(), clientID, orderID, models.OrderBillRequested, Caller{
			ActorID:         auth.ActorID(c),
			SessionID:       body.SessionID,
			ExpectedVersion: body.Version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// DELETE /api/orders/:id/items/:itemId?version=
func (h *Handler) CancelItem() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		itemID, err := c.ParamsInt("itemId")
		if err != nil || itemID <= 0 {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz kalem ID")
		}
		version, err := queryVersion(c)
		if err != nil {
			return err
		}

		order, err := h.svc.CancelItem(c.UserContext(), clientID, orderID, uint(itemID), Caller{
			ActorID:         auth.ActorID(c),
			ExpectedVersion: version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// PATCH /api/orders/:id/status
func (h *Handler) UpdateStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		var body StatusRequest
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return apperror.New(apperror.CodeInvalidInput, "Durum zorunlu")
		}

		order, err := h.svc.UpdateStatus(c.UserContext(), clientID, orderID, body.Status, Caller{
			ActorID:         auth.ActorID(c),
			ExpectedVersion: body.Version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// PATCH /api/orders/:id/items/:itemId/status
func (h *Handler) UpdateItemStatus() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		itemID, err := c.ParamsInt("itemId")
		if err != nil || itemID <= 0 {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz kalem ID")
		}
		var body ItemStatusRequest
		if err := c.BodyParser(&body); err != nil || body.Status == "" {
			return apperror.New(apperror.CodeInvalidInput, "Durum zorunlu")
		}

		order, err := h.svc.UpdateItemStatus(c.UserContext(), clientID, orderID, uint(itemID), body.Status, Caller{
			ActorID:         auth.ActorID(c),
			ExpectedVersion: body.Version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// POST /api/orders/:id/discount (yönetici)
func (h *Handler) ApplyDiscount() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID, orderID, err := orderParams(c)
		if err != nil {
			return err
		}
		var body DiscountRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		order, err := h.svc.ApplyDiscount(c.UserContext(), clientID, orderID, body.Percent, Caller{
			ActorID:         auth.ActorID(c),
			ExpectedVersion: body.Version,
		})
		if err != nil {
			return err
		}
		return c.JSON(order)
	}
}

// GET /api/orders/active?status=PREPARING
func (h *Handler) ListActive() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		list, err := h.svc.ListActiveOrders(c.UserContext(), client.ID, models.OrderStatus(c.Query("status")))
		if err != nil {
			return err
		}
		return c.JSON(list)
	}
}

func orderParams(c *fiber.Ctx) (uint, uint, error) {
	client, err := tenant.FromCtx(c)
	if err != nil {
		return 0, 0, err
	}
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, 0, apperror.New(apperror.CodeInvalidInput, "Geçersiz sipariş ID")
	}
	return client.ID, uint(id), nil
}

func queryVersion(c *fiber.Ctx) (*int64, error) {
	raw := c.Query("version")
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput, "Geçersiz sürüm")
	}
	return &v, nil
}
