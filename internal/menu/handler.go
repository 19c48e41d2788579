package menu

import (
	"strings"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handler struct {
	db *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

type CreateMenuItemRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
}

type AvailabilityRequest struct {
	Available bool `json:"available"`
}

// GET /api/menu-items
func (h *Handler) List() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		q := h.db.Where("client_id = ?", client.ID)
		if c.Query("available") == "true" {
			q = q.Where("available = ?", true)
		}

		var items []models.MenuItem
		if err := q.Order("category, name").Find(&items).Error; err != nil {
			return apperror.Internal("Menü listelenemedi", err)
		}
		return c.JSON(items)
	}
}

// POST /api/menu-items
func (h *Handler) Create() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		var body CreateMenuItemRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}
		if strings.TrimSpace(body.Name) == "" || !body.Price.IsPositive() {
			return apperror.New(apperror.CodeInvalidInput, "İsim zorunlu ve fiyat 0'dan büyük olmalı")
		}

		item := models.MenuItem{
			ClientID:  client.ID,
			Name:      strings.TrimSpace(body.Name),
			Category:  strings.TrimSpace(body.Category),
			Price:     body.Price.Round(2),
			Available: true,
		}
		if err := h.db.Create(&item).Error; err != nil {
			return apperror.Internal("Menü ürünü oluşturulamadı", err)
		}
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// PATCH /api/menu-items/:id/availability
func (h *Handler) SetAvailability() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz menü ürünü ID")
		}

		var body AvailabilityRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		res := h.db.Model(&models.MenuItem{}).
			Where("id = ? AND client_id = ?", id, client.ID).
			Update("available", body.Available)
		if res.Error != nil {
			return apperror.Internal("Menü ürünü güncellenemedi", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperror.New(apperror.CodeNotFound, "Menü ürünü bulunamadı")
		}
		return c.JSON(fiber.Map{"id": id, "available": body.Available})
	}
}
