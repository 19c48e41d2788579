package tables

import (
	"context"
	"time"

	"restoran-pos/internal/audit"
	"restoran-pos/internal/events"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"

	"go.uber.org/zap"
)

const ghostPersistTimeout = 10 * time.Second

// isGhost siparişsiz kalmış ve süresi dolmuş ACTIVE masa
func (s *Service) isGhost(t *models.Table, now time.Time) bool {
	return t.Status == models.TableActive &&
		t.ActiveOrderID == nil &&
		t.ClaimedAt != nil &&
		now.Sub(*t.ClaimedAt) > s.ghostTimeout
}

// reclaimGhosts listedeki hayalet masaları görünümde VACANT yapar ve
// veritabanına yazımı arka plana bırakır. Yazım hatası çağırana dönmez.
func (s *Service) reclaimGhosts(clientID uint, list []models.Table) {
	now := s.now()

	var ids []uint
	for i := range list {
		if !s.isGhost(&list[i], now) {
			continue
		}
		ids = append(ids, list[i].ID)
		list[i].Status = models.TableVacant
		list[i].SessionID = ""
		list[i].CustomerName = ""
		list[i].PartySize = 0
		list[i].ClaimedAt = nil
	}
	if len(ids) == 0 {
		return
	}

	cutoff := now.Add(-s.ghostTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.persistGhosts(clientID, ids, cutoff)
	}()
}

// persistGhosts her masayı ayrı koşullu UPDATE ile bırakır. Bu arada masa
// sipariş aldıysa veya yeniden claim edildiyse satır eşleşmez ve dokunulmaz.
func (s *Service) persistGhosts(clientID uint, ids []uint, cutoff time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), ghostPersistTimeout)
	defer cancel()

	db := s.db.WithContext(ctx)
	log := s.logger().With(zap.Uint("client_id", clientID))

	for _, id := range ids {
		res := db.Model(&models.Table{}).
			Where("id = ? AND client_id = ? AND status = ? AND active_order_id IS NULL AND claimed_at < ?",
				id, clientID, models.TableActive, cutoff).
			Where("NOT EXISTS (SELECT 1 FROM orders WHERE orders.table_id = tables.id AND orders.status IN ?)",
				models.NonTerminalOrderStatuses).
			Updates(vacantFields())
		if res.Error != nil {
			log.Warn("hayalet masa bırakılamadı", zap.Uint("table_id", id), zap.Error(res.Error))
			continue
		}
		if res.RowsAffected == 0 {
			continue
		}

		metrics.GhostsReclaimed.Inc()
		log.Info("hayalet masa boşa alındı", zap.Uint("table_id", id))

		s.recorder.Record(audit.Entry{
			ClientID:    clientID,
			EntityType:  audit.EntityTable,
			EntityID:    id,
			Action:      models.AuditTableReclaimed,
			Description: "Siparişsiz oturum zaman aşımına uğradı",
			Metadata:    map[string]any{"from": models.TableActive, "to": models.TableVacant, "timeout": s.ghostTimeout.String()},
		})
		events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.TableUpdated, id, map[string]any{
			"id":     id,
			"status": models.TableVacant,
		}).OnTable(id))
	}
}

// Wait arka plandaki hayalet masa yazımlarının bitmesini bekler
func (s *Service) Wait() {
	s.wg.Wait()
}
