package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type StaffRole string

const (
	RoleManager StaffRole = "MANAGER"
	RoleWaiter  StaffRole = "WAITER"
	RoleCashier StaffRole = "CASHIER"
	RoleKitchen StaffRole = "KITCHEN"
)

type Staff struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	ClientID     uint      `gorm:"not null;uniqueIndex:idx_staff_client_email" json:"client_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:100;not null;uniqueIndex:idx_staff_client_email" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         StaffRole `gorm:"size:20;not null" json:"role"`

	// Performans sayaçları, sadece ödeme transaction'ı artırır
	OrderCount int64           `gorm:"not null;default:0" json:"order_count"`
	SalesTotal decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"sales_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
