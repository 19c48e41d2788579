// Package tables masa kaydı ve masa sahiplenme (claim) işlemleri.
package tables

import (
	"context"
	"errors"
	"sync"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/events"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db           *gorm.DB
	recorder     *audit.Recorder
	bus          events.Bus
	ghostTimeout time.Duration
	now          func() time.Time

	// arka planda çalışan hayalet masa yazımları
	wg sync.WaitGroup
}

func NewService(db *gorm.DB, recorder *audit.Recorder, bus events.Bus, ghostTimeout time.Duration) *Service {
	return &Service{
		db:           db,
		recorder:     recorder,
		bus:          bus,
		ghostTimeout: ghostTimeout,
		now:          time.Now,
	}
}

type CreateTableInput struct {
	Code             string `json:"code"`
	Capacity         int    `json:"capacity"`
	AssignedWaiterID *uint  `json:"assigned_waiter_id"`
}

func (s *Service) CreateTable(ctx context.Context, clientID uint, in CreateTableInput) (*models.Table, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "Masa kodu zorunlu")
	}
	if in.Capacity < 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "Kapasite negatif olamaz")
	}
	if in.Capacity == 0 {
		in.Capacity = 4
	}

	db := s.db.WithContext(ctx)
	if in.AssignedWaiterID != nil {
		if err := ensureStaff(db, clientID, *in.AssignedWaiterID); err != nil {
			return nil, err
		}
	}

	table := models.Table{
		ClientID:         clientID,
		Code:             code,
		Capacity:         in.Capacity,
		Status:           models.TableVacant,
		AssignedWaiterID: in.AssignedWaiterID,
	}
	if err := db.Create(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperror.Newf(apperror.CodeConflict, "%s kodlu masa zaten var", code)
		}
		return nil, apperror.Internal("Masa oluşturulamadı", err)
	}

	s.publish(ctx, &table)
	return &table, nil
}

// ListTables işletmenin masalarını döner. Hayalet oturumlar dönen görünümde
// hemen VACANT yapılır, kalıcı yazım arka planda yapılır.
func (s *Service) ListTables(ctx context.Context, clientID uint, status string) ([]models.Table, error) {
	q := s.db.WithContext(ctx).Where("client_id = ?", clientID)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var list []models.Table
	if err := q.Order("code").Find(&list).Error; err != nil {
		return nil, apperror.Internal("Masalar listelenemedi", err)
	}

	s.reclaimGhosts(clientID, list)

	if status != "" {
		filtered := list[:0]
		for _, t := range list {
			if string(t.Status) == status {
				filtered = append(filtered, t)
			}
		}
		list = filtered
	}
	return list, nil
}

func (s *Service) GetTable(ctx context.Context, clientID, tableID uint) (*models.Table, error) {
	return findTable(s.db.WithContext(ctx), clientID, tableID)
}

func (s *Service) DeleteTable(ctx context.Context, clientID, tableID uint) error {
	db := s.db.WithContext(ctx)
	table, err := findTable(db, clientID, tableID)
	if err != nil {
		return err
	}
	if table.Status == models.TableActive {
		return apperror.New(apperror.CodeInvalidState, "Aktif masa silinemez, önce sıfırlayın")
	}

	res := db.Where("id = ? AND client_id = ? AND status <> ?", tableID, clientID, models.TableActive).
		Delete(&models.Table{})
	if res.Error != nil {
		return apperror.Internal("Masa silinemedi", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.New(apperror.CodeInvalidState, "Masa bu sırada aktif oldu")
	}
	return nil
}

// MarkClean temizlenen masayı DIRTY'den VACANT'a alır
func (s *Service) MarkClean(ctx context.Context, clientID, tableID uint, actorID *uint) (*models.Table, error) {
	db := s.db.WithContext(ctx)

	res := db.Model(&models.Table{}).
		Where("id = ? AND client_id = ? AND status = ?", tableID, clientID, models.TableDirty).
		Updates(vacantFields())
	if res.Error != nil {
		return nil, apperror.Internal("Masa güncellenemedi", res.Error)
	}

	table, err := findTable(db, clientID, tableID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		return nil, apperror.Newf(apperror.CodeInvalidState, "Masa temizlik bekliyor değil (%s)", table.Status)
	}

	s.recorder.Record(audit.Entry{
		ClientID:    clientID,
		ActorID:     actorID,
		EntityType:  audit.EntityTable,
		EntityID:    table.ID,
		Action:      models.AuditTableCleaned,
		Description: "Masa temizlendi: " + table.Code,
		Metadata:    map[string]any{"from": models.TableDirty, "to": models.TableVacant},
	})
	s.publish(ctx, table)
	return table, nil
}

// AssignWaiter masaya garson atar; staffID nil ise atamayı kaldırır
func (s *Service) AssignWaiter(ctx context.Context, clientID, tableID uint, staffID *uint) (*models.Table, error) {
	db := s.db.WithContext(ctx)
	if staffID != nil {
		if err := ensureStaff(db, clientID, *staffID); err != nil {
			return nil, err
		}
	}

	res := db.Model(&models.Table{}).
		Where("id = ? AND client_id = ?", tableID, clientID).
		Update("assigned_waiter_id", staffID)
	if res.Error != nil {
		return nil, apperror.Internal("Garson atanamadı", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperror.ErrTableNotFound
	}

	table, err := findTable(db, clientID, tableID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, table)
	return table, nil
}

// ResetTable acil durum müdahalesi: masadaki açık siparişleri iptal eder ve
// masayı durumundan bağımsız olarak VACANT yapar.
func (s *Service) ResetTable(ctx context.Context, tableID, clientID uint, actorID *uint) (*models.Table, error) {
	defer metrics.TrackDBOperation("reset_table")(time.Now())

	var (
		table     *models.Table
		cancelled []models.Order
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		table, err = findTable(tx, clientID, tableID)
		if err != nil {
			return err
		}
		previous := table.Status

		var open []models.Order
		if err := tx.Where("client_id = ? AND table_id = ? AND status IN ?", clientID, tableID, models.NonTerminalOrderStatuses).
			Find(&open).Error; err != nil {
			return apperror.Internal("Açık siparişler okunamadı", err)
		}

		for _, o := range open {
			res := tx.Model(&models.Order{}).
				Where("id = ? AND client_id = ? AND version = ?", o.ID, clientID, o.Version).
				Updates(map[string]any{
					"status":  models.OrderCancelled,
					"version": gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return apperror.Internal("Sipariş iptal edilemedi", res.Error)
			}
			if res.RowsAffected == 0 {
				metrics.VersionConflicts.WithLabelValues("reset_table").Inc()
				return apperror.ErrVersionConflict
			}

			audit.WriteInTx(tx, audit.Entry{
				ClientID:    clientID,
				ActorID:     actorID,
				EntityType:  audit.EntityOrder,
				EntityID:    o.ID,
				Action:      models.AuditStatusChanged,
				Description: "Masa sıfırlandığı için sipariş iptal edildi",
				Metadata:    map[string]any{"from": o.Status, "to": models.OrderCancelled, "reason": "table_reset"},
			})
			o.Status = models.OrderCancelled
			o.Version++
			cancelled = append(cancelled, o)
		}

		if err := tx.Model(&models.Table{}).
			Where("id = ? AND client_id = ?", tableID, clientID).
			Updates(vacantFields()).Error; err != nil {
			return apperror.Internal("Masa sıfırlanamadı", err)
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     actorID,
			EntityType:  audit.EntityTable,
			EntityID:    tableID,
			Action:      models.AuditTableReset,
			Description: "Masa sıfırlandı: " + table.Code,
			Metadata: map[string]any{
				"from":             previous,
				"to":               models.TableVacant,
				"cancelled_orders": len(cancelled),
			},
		})

		table, err = findTable(tx, clientID, tableID)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range cancelled {
		events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.OrderUpdated, cancelled[i].ID, cancelled[i]).OnTable(cancelled[i].TableID))
	}
	s.publish(ctx, table)
	return table, nil
}

// -------------------------
// Yardımcılar
// -------------------------

func findTable(db *gorm.DB, clientID, tableID uint) (*models.Table, error) {
	var table models.Table
	if err := db.Where("id = ? AND client_id = ?", tableID, clientID).First(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrTableNotFound
		}
		return nil, apperror.Internal("Masa okunamadı", err)
	}
	return &table, nil
}

func ensureStaff(db *gorm.DB, clientID, staffID uint) error {
	var count int64
	if err := db.Model(&models.Staff{}).Where("id = ? AND client_id = ?", staffID, clientID).Count(&count).Error; err != nil {
		return apperror.Internal("Personel okunamadı", err)
	}
	if count == 0 {
		return apperror.New(apperror.CodeNotFound, "Personel bulunamadı")
	}
	return nil
}

// vacantFields masayı oturumsuz boş hale getiren alanlar
func vacantFields() map[string]any {
	return map[string]any{
		"status":          models.TableVacant,
		"active_order_id": nil,
		"session_id":      "",
		"customer_name":   "",
		"party_size":      0,
		"claimed_at":      nil,
	}
}

func (s *Service) publish(ctx context.Context, t *models.Table) {
	events.PublishBestEffort(ctx, s.bus, events.New(t.ClientID, events.TableUpdated, t.ID, t).OnTable(t.ID))
}

func (s *Service) logger() *zap.Logger {
	return zap.L().Named("tables")
}
