package models

import (
	"time"

	"gorm.io/gorm"
)

type TableStatus string

const (
	TableVacant TableStatus = "VACANT"
	TableActive TableStatus = "ACTIVE"
	TableDirty  TableStatus = "DIRTY"
)

// Table fiziksel masa. Code işletme içindeki silinmemiş masalar arasında tekil
// ve yazılırken normalize edilir (T-05). Tekillik index'i database.Migrate'te.
type Table struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	ClientID uint        `gorm:"not null" json:"client_id"`
	Code     string      `gorm:"size:20;not null" json:"code"`
	Capacity int         `gorm:"not null;default:4" json:"capacity"`
	Status   TableStatus `gorm:"size:10;not null;default:VACANT;index" json:"status"`

	AssignedWaiterID *uint `json:"assigned_waiter_id"`
	ActiveOrderID    *uint `json:"active_order_id"`

	// Aktif oturum bilgisi (claim sırasında doldurulur)
	SessionID    string     `gorm:"size:64" json:"session_id,omitempty"`
	CustomerName string     `gorm:"size:100" json:"customer_name,omitempty"`
	PartySize    int        `json:"party_size,omitempty"`
	ClaimedAt    *time.Time `json:"claimed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
