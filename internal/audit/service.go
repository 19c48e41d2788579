package audit

import (
	"encoding/json"
	"fmt"

	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EntityTable   = "table"
	EntityOrder   = "order"
	EntityPayment = "payment"
)

type Entry struct {
	ClientID    uint
	ActorID     *uint
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Metadata    any
}

func (e Entry) toModel() models.AuditLog {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	meta := "null"
	if e.Metadata != nil {
		if b, err := json.Marshal(e.Metadata); err == nil {
			meta = string(b)
		}
	}

	return models.AuditLog{
		ClientID:    e.ClientID,
		ActorID:     e.ActorID,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		Description: e.Description,
		Metadata:    meta,
	}
}

// WriteLog kaydı doğrudan yazar, hatayı çağırana döner
func WriteLog(db *gorm.DB, e Entry) error {
	log := e.toModel()
	if err := db.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}
	return nil
}

// WriteInTx kaydı açık transaction içinde bir savepoint altında yazar.
// Başarılı olursa ana transaction ile birlikte commit edilir; başarısız olursa
// sadece savepoint geri alınır, hata loglanır ve ana işlem devam eder.
func WriteInTx(tx *gorm.DB, e Entry) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		return WriteLog(sp, e)
	})
	if err != nil {
		metrics.AuditDropped.Inc()
		zap.L().Warn("audit log yazılamadı, işlem devam ediyor",
			zap.Uint("client_id", e.ClientID),
			zap.String("action", string(e.Action)),
			zap.Uint("entity_id", e.EntityID),
			zap.Error(err),
		)
	}
}
