package models

import "time"

type AuditAction string

const (
	AuditTableClaimed      AuditAction = "TABLE_CLAIMED"
	AuditTableReset        AuditAction = "TABLE_RESET"
	AuditTableCleaned      AuditAction = "TABLE_CLEANED"
	AuditTableReclaimed    AuditAction = "TABLE_RECLAIMED"
	AuditOrderCreated      AuditAction = "ORDER_CREATED"
	AuditItemsAdded        AuditAction = "ITEMS_ADDED"
	AuditItemCancelled     AuditAction = "ITEM_CANCELLED"
	AuditItemStatus        AuditAction = "ITEM_STATUS_CHANGED"
	AuditStatusChanged     AuditAction = "STATUS_CHANGED"
	AuditDiscountApplied   AuditAction = "DISCOUNT_APPLIED"
	AuditPaymentAuthorized AuditAction = "PAYMENT_AUTHORIZED"
	AuditOrderClosed       AuditAction = "ORDER_CLOSED"
)

// AuditLog append-only. Çekirdek mantık bu kayıtları asla güncellemez veya silmez.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`

	ClientID uint `gorm:"index;not null" json:"client_id"`

	// Anonim müşteri işlemlerinde boş
	ActorID *uint `json:"actor_id"`

	EntityType string      `gorm:"size:30;index" json:"entity_type"`
	EntityID   uint        `gorm:"index" json:"entity_id"`
	Action     AuditAction `gorm:"size:30" json:"action"`

	Description string `gorm:"size:255" json:"description"`
	Metadata    string `gorm:"type:jsonb" json:"metadata"`
}
