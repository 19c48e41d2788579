// Package events canlı ekran yenilemesi için işletme bazlı olay yayını.
// Doğruluk için kullanılmaz; yayın hataları loglanıp yutulur.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	TableUpdated   Type = "table.updated"
	OrderUpdated   Type = "order.updated"
	PaymentSettled Type = "payment.settled"
)

type Event struct {
	Type      Type            `json:"type"`
	ClientID  uint            `json:"client_id"`
	EntityID  uint            `json:"entity_id"`
	TableID   uint            `json:"table_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Bus tek süreçte bellek içi, çok süreçte Redis veya Kafka ile çalışır
type Bus interface {
	Publish(ctx context.Context, e Event) error
	// Subscribe ctx iptal edilene kadar işletmenin olaylarını kanala yazar
	Subscribe(ctx context.Context, clientID uint) (<-chan Event, error)
	Close() error
}

func New(clientID uint, typ Type, entityID uint, payload any) Event {
	e := Event{
		Type:      typ,
		ClientID:  clientID,
		EntityID:  entityID,
		CreatedAt: time.Now(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = b
		}
	}
	return e
}

// OnTable olayı bir masaya bağlar; müşteri akışı bu alana göre süzülür
func (e Event) OnTable(tableID uint) Event {
	e.TableID = tableID
	return e
}

// PublishBestEffort commit sonrası çağrılır; hata sadece loglanır
func PublishBestEffort(ctx context.Context, bus Bus, e Event) {
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx, e); err != nil {
		zap.L().Warn("olay yayınlanamadı",
			zap.String("type", string(e.Type)),
			zap.Uint("client_id", e.ClientID),
			zap.Error(err),
		)
	}
}
