package auth

import (
	"fmt"
	"strings"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CtxStaffIDKey   = "staff_id"
	CtxStaffRoleKey = "staff_role"
)

func parseToken(secret, header string) (*JWTCustomClaims, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil, fmt.Errorf("authorization formatı 'Bearer <token>' olmalı")
	}

	token, err := jwt.ParseWithClaims(parts[1], &JWTCustomClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("geçersiz imzalama yöntemi")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("geçersiz veya süresi dolmuş token")
	}

	claims, ok := token.Claims.(*JWTCustomClaims)
	if !ok {
		return nil, fmt.Errorf("token çözümlenemedi")
	}
	return claims, nil
}

func setClaims(c *fiber.Ctx, claims *JWTCustomClaims) {
	c.Locals(CtxStaffIDKey, claims.StaffID)
	c.Locals(CtxStaffRoleKey, claims.Role)
	c.Locals(tenant.CtxStaffClientIDKey, claims.ClientID)
}

// JWTMiddleware personel token'ı zorunlu
func JWTMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return apperror.New(apperror.CodeAuthRequired, "Authorization header eksik")
		}
		claims, err := parseToken(secret, authHeader)
		if err != nil {
			return apperror.New(apperror.CodeAuthRequired, err.Error())
		}
		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalJWT token varsa aktör bilgisini ekler. Müşteri istekleri token'sız geçer;
// bozuk token ise reddedilir.
func OptionalJWT(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Next()
		}
		claims, err := parseToken(secret, authHeader)
		if err != nil {
			return apperror.New(apperror.CodeAuthRequired, err.Error())
		}
		setClaims(c, claims)
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.StaffRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role, ok := c.Locals(CtxStaffRoleKey).(models.StaffRole)
		if !ok {
			return apperror.New(apperror.CodeAuthRequired, "Rol bilgisi alınamadı")
		}

		for _, r := range allowedRoles {
			if r == role {
				return c.Next()
			}
		}
		return apperror.New(apperror.CodeForbidden, "Bu işlem için yetkiniz yok")
	}
}

// ActorID audit kayıtları için personel kimliği; müşteri isteklerinde nil
func ActorID(c *fiber.Ctx) *uint {
	if id, ok := c.Locals(CtxStaffIDKey).(uint); ok && id != 0 {
		return &id
	}
	return nil
}
