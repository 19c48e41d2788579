package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClientPlan string

const (
	PlanFree       ClientPlan = "FREE"
	PlanPro        ClientPlan = "PRO"
	PlanEnterprise ClientPlan = "ENTERPRISE"
)

type ClientStatus string

const (
	ClientActive       ClientStatus = "ACTIVE"
	ClientTrial        ClientStatus = "TRIAL"
	ClientSuspended    ClientStatus = "SUSPENDED"
	ClientArchived     ClientStatus = "ARCHIVED"
	ClientProvisioning ClientStatus = "PROVISIONING"
)

// Client platformdaki tek bir otel/restoran. Diğer tüm kayıtlar client_id ile ona bağlı.
type Client struct {
	ID     uint         `gorm:"primaryKey" json:"id"`
	Slug   string       `gorm:"size:63;uniqueIndex;not null" json:"slug"` // subdomain anahtarı
	Name   string       `gorm:"size:150;not null" json:"name"`
	Plan   ClientPlan   `gorm:"size:20;not null;default:FREE" json:"plan"`
	Status ClientStatus `gorm:"size:20;not null;default:PROVISIONING" json:"status"`

	// Yüzde olarak (5 = %5)
	GSTRate           decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"gst_rate"`
	ServiceChargeRate decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"service_charge_rate"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsServing askıya alınmamış / arşivlenmemiş işletmeler istek alabilir
func (c *Client) IsServing() bool {
	return c.Status == ClientActive || c.Status == ClientTrial
}
