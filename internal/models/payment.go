package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentAuthorized PaymentStatus = "AUTHORIZED"
)

// Payment sipariş başına en fazla bir tane (order_id unique)
type Payment struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ClientID   uint            `gorm:"index;not null" json:"client_id"`
	OrderID    uint            `gorm:"uniqueIndex;not null" json:"order_id"`
	Method     PaymentMethod   `gorm:"size:10;not null" json:"method"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status     PaymentStatus   `gorm:"size:20;not null" json:"status"`
	ReceivedBy *uint           `json:"received_by"`
	CreatedAt  time.Time       `json:"created_at"`
}
