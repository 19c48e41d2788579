package auth

import (
	"time"

	"restoran-pos/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type JWTCustomClaims struct {
	StaffID  uint             `json:"staff_id"`
	ClientID uint             `json:"client_id"`
	Role     models.StaffRole `json:"role"`
	jwt.RegisteredClaims
}

func GenerateToken(secret string, staff *models.Staff) (string, error) {
	claims := &JWTCustomClaims{
		StaffID:  staff.ID,
		ClientID: staff.ClientID,
		Role:     staff.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)), // bir vardiya
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
