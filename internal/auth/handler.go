package auth

import (
	"errors"
	"strings"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	resolver *tenant.Resolver
	secret   string
}

func NewHandler(db *gorm.DB, resolver *tenant.Resolver, secret string) *Handler {
	return &Handler{db: db, resolver: resolver, secret: secret}
}

type LoginRequest struct {
	Tenant   string `json:"tenant"` // işletme slug'ı
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateStaffRequest struct {
	Name     string           `json:"name"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     models.StaffRole `json:"role"`
}

type BootstrapManagerRequest struct {
	Tenant   string `json:"tenant"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/auth/login
func (h *Handler) Login() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		client, err := h.resolver.BySlug(c.UserContext(), body.Tenant)
		if err != nil {
			return err
		}

		email := strings.TrimSpace(strings.ToLower(body.Email))

		var staff models.Staff
		if err := h.db.Where("client_id = ? AND email = ?", client.ID, email).First(&staff).Error; err != nil {
			return apperror.New(apperror.CodeAuthRequired, "Email veya şifre hatalı")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(body.Password)); err != nil {
			return apperror.New(apperror.CodeAuthRequired, "Email veya şifre hatalı")
		}

		token, err := GenerateToken(h.secret, &staff)
		if err != nil {
			return apperror.Internal("Token oluşturulamadı", err)
		}

		return c.JSON(fiber.Map{
			"token": token,
			"staff": staff,
		})
	}
}

// POST /api/auth/bootstrap-manager
// İşletmenin ilk yöneticisi; işletmede personel varsa reddedilir.
func (h *Handler) BootstrapManager() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BootstrapManagerRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		client, err := h.resolver.BySlug(c.UserContext(), body.Tenant)
		if err != nil {
			return err
		}

		var count int64
		if err := h.db.Model(&models.Staff{}).Where("client_id = ?", client.ID).Count(&count).Error; err != nil {
			return apperror.Internal("Personel sayılamadı", err)
		}
		if count > 0 {
			return apperror.New(apperror.CodeForbidden, "Bu işletmede zaten personel var")
		}

		staff, err := h.createStaff(client.ID, CreateStaffRequest{
			Name:     body.Name,
			Email:    body.Email,
			Password: body.Password,
			Role:     models.RoleManager,
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(staff)
	}
}

// POST /api/staff (yönetici)
func (h *Handler) CreateStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		var body CreateStaffRequest
		if err := c.BodyParser(&body); err != nil {
			return apperror.New(apperror.CodeInvalidInput, "Geçersiz istek gövdesi")
		}

		staff, err := h.createStaff(client.ID, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(staff)
	}
}

// GET /api/auth/me
func (h *Handler) Me() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}
		staffID, ok := c.Locals(CtxStaffIDKey).(uint)
		if !ok {
			return apperror.ErrAuthRequired
		}

		var staff models.Staff
		if err := h.db.Where("id = ? AND client_id = ?", staffID, client.ID).First(&staff).Error; err != nil {
			return apperror.New(apperror.CodeNotFound, "Personel bulunamadı")
		}
		return c.JSON(fiber.Map{
			"staff":  staff,
			"client": client,
		})
	}
}

func (h *Handler) createStaff(clientID uint, body CreateStaffRequest) (*models.Staff, error) {
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Email == "" || body.Password == "" || strings.TrimSpace(body.Name) == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "İsim, email ve şifre zorunlu")
	}
	switch body.Role {
	case models.RoleManager, models.RoleWaiter, models.RoleCashier, models.RoleKitchen:
	default:
		return nil, apperror.New(apperror.CodeInvalidInput, "Geçersiz rol")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperror.Internal("Şifre hashlenemedi", err)
	}

	staff := models.Staff{
		ClientID:     clientID,
		Name:         strings.TrimSpace(body.Name),
		Email:        body.Email,
		PasswordHash: string(hash),
		Role:         body.Role,
	}
	if err := h.db.Create(&staff).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.New(apperror.CodeConflict, "Bu email zaten kayıtlı")
		}
		return nil, apperror.Internal("Personel oluşturulamadı", err)
	}
	return &staff, nil
}
