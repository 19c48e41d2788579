package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderNew           OrderStatus = "NEW"
	OrderPreparing     OrderStatus = "PREPARING"
	OrderReady         OrderStatus = "READY"
	OrderServed        OrderStatus = "SERVED"
	OrderBillRequested OrderStatus = "BILL_REQUESTED"
	OrderClosed        OrderStatus = "CLOSED"
	OrderCancelled     OrderStatus = "CANCELLED"
)

// NonTerminalOrderStatuses masayı meşgul tutan durumlar
var NonTerminalOrderStatuses = []OrderStatus{
	OrderNew, OrderPreparing, OrderReady, OrderServed, OrderBillRequested,
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderClosed || s == OrderCancelled
}

type PaymentMethod string

const (
	PaymentCash PaymentMethod = "CASH"
	PaymentCard PaymentMethod = "CARD"
	PaymentUPI  PaymentMethod = "UPI"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentUPI
}

type Order struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	ClientID  uint        `gorm:"index;not null" json:"client_id"`
	TableID   uint        `gorm:"index;not null" json:"table_id"`
	SessionID string      `gorm:"size:64" json:"session_id"`
	Status    OrderStatus `gorm:"size:20;not null;default:NEW;index" json:"status"`

	// Optimistic concurrency token, her yazımda +1
	Version int64 `gorm:"not null;default:1" json:"version"`

	WaiterID *uint `json:"waiter_id"`

	CustomerName  string `gorm:"size:100" json:"customer_name"`
	CustomerPhone string `gorm:"size:30" json:"customer_phone"`
	PartySize     int    `json:"party_size"`

	// Tutarlar her zaman sunucuda kalemlerden hesaplanır
	DiscountPercent     decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"discount_percent"`
	Subtotal            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"subtotal"`
	DiscountAmount      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	GSTAmount           decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"gst_amount"`
	ServiceChargeAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"service_charge_amount"`
	GrandTotal          decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"grand_total"`

	PaymentMethod *PaymentMethod `gorm:"size:10" json:"payment_method"`
	ClosedAt      *time.Time     `json:"closed_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type OrderItemStatus string

const (
	ItemPending   OrderItemStatus = "PENDING"
	ItemPreparing OrderItemStatus = "PREPARING"
	ItemReady     OrderItemStatus = "READY"
	ItemServed    OrderItemStatus = "SERVED"
	ItemCancelled OrderItemStatus = "CANCELLED"
)

// OrderItem menü ürününün sipariş anındaki ad ve fiyatını saklar, sonraki fiyat değişiklikleri etkilemez
type OrderItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	OrderID    uint            `gorm:"index;not null" json:"order_id"`
	ClientID   uint            `gorm:"index;not null" json:"client_id"`
	MenuItemID uint            `gorm:"not null" json:"menu_item_id"`
	Name       string          `gorm:"size:150;not null" json:"name"`
	UnitPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	Status     OrderItemStatus `gorm:"size:20;not null;default:PENDING" json:"status"`

	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
	CancelledByID *uint      `json:"cancelled_by_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
