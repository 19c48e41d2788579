package tables

import (
	"context"
	"errors"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ClaimAction string

const (
	ActionClaimed ClaimAction = "CLAIMED"
	ActionJoin    ClaimAction = "JOIN"
)

type ClaimInput struct {
	TableCode    string `json:"tableCode"`
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
	PartySize    int    `json:"partySize"`
	// Personel müşteri adına claim ederse dolu
	ActorID *uint `json:"-"`
}

type ClaimResult struct {
	Action      ClaimAction   `json:"action"`
	SessionID   string        `json:"sessionId"`
	Table       *models.Table `json:"table"`
	ActiveOrder *models.Order `json:"activeOrder,omitempty"`
}

// ClaimTable boş masayı gelen müşteri oturumuna atar veya dolu masadaki
// oturuma katılır. VACANT -> ACTIVE geçişi koşullu tek bir UPDATE ile yapılır;
// eşzamanlı isteklerden yalnızca biri kazanır, diğerleri RACE_CONDITION alır.
func (s *Service) ClaimTable(ctx context.Context, clientID uint, in ClaimInput) (*ClaimResult, error) {
	defer metrics.TrackDBOperation("claim_table")(time.Now())

	res, err := s.claim(ctx, clientID, in)
	switch {
	case err == nil:
		metrics.ClaimResults.WithLabelValues(string(res.Action)).Inc()
	case apperror.CodeOf(err) == apperror.CodeTableDirty, apperror.CodeOf(err) == apperror.CodeRaceCondition:
		metrics.ClaimResults.WithLabelValues(string(apperror.CodeOf(err))).Inc()
	default:
		metrics.ClaimResults.WithLabelValues("ERROR").Inc()
	}
	return res, err
}

func (s *Service) claim(ctx context.Context, clientID uint, in ClaimInput) (*ClaimResult, error) {
	code := NormalizeCode(in.TableCode)
	if code == "" {
		return nil, apperror.New(apperror.CodeInvalidInput, "Masa kodu zorunlu")
	}
	if in.PartySize < 0 {
		return nil, apperror.New(apperror.CodeInvalidInput, "Kişi sayısı negatif olamaz")
	}

	db := s.db.WithContext(ctx)

	var table models.Table
	if err := db.Where("client_id = ? AND code = ?", clientID, code).First(&table).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrTableNotFound
		}
		return nil, apperror.Internal("Masa okunamadı", err)
	}

	if table.Status == models.TableDirty {
		return nil, apperror.ErrTableDirty
	}

	active, err := latestOpenOrder(db, clientID, table.ID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return &ClaimResult{Action: ActionJoin, SessionID: table.SessionID, Table: &table, ActiveOrder: active}, nil
	}

	now := s.now()
	ghost := s.isGhost(&table, now)
	if table.Status == models.TableActive && !ghost {
		// Masa alınmış ama henüz sipariş yok: aynı oturuma katıl
		return &ClaimResult{Action: ActionJoin, SessionID: table.SessionID, Table: &table}, nil
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fields := map[string]any{
		"status":          models.TableActive,
		"active_order_id": nil,
		"session_id":      sessionID,
		"customer_name":   in.CustomerName,
		"party_size":      in.PartySize,
		"claimed_at":      now,
	}

	q := db.Model(&models.Table{}).Where("id = ? AND client_id = ?", table.ID, clientID)
	if ghost {
		q = q.Where("status = ? AND active_order_id IS NULL AND claimed_at < ?", models.TableActive, now.Add(-s.ghostTimeout))
	} else {
		q = q.Where("status = ?", models.TableVacant)
	}
	upd := q.Updates(fields)
	if upd.Error != nil {
		return nil, apperror.Internal("Masa alınamadı", upd.Error)
	}
	if upd.RowsAffected == 0 {
		return nil, apperror.ErrRaceCondition
	}

	previous := table.Status
	table.Status = models.TableActive
	table.ActiveOrderID = nil
	table.SessionID = sessionID
	table.CustomerName = in.CustomerName
	table.PartySize = in.PartySize
	table.ClaimedAt = &now

	s.recorder.Record(audit.Entry{
		ClientID:    clientID,
		ActorID:     in.ActorID,
		EntityType:  audit.EntityTable,
		EntityID:    table.ID,
		Action:      models.AuditTableClaimed,
		Description: "Masa alındı: " + table.Code,
		Metadata: map[string]any{
			"from":       previous,
			"session_id": sessionID,
			"party_size": in.PartySize,
			"ghost":      ghost,
		},
	})
	s.publish(ctx, &table)

	return &ClaimResult{Action: ActionClaimed, SessionID: sessionID, Table: &table}, nil
}

// latestOpenOrder masadaki en son kapanmamış siparişi kalemleriyle döner
func latestOpenOrder(db *gorm.DB, clientID, tableID uint) (*models.Order, error) {
	var orders []models.Order
	err := db.Preload("Items").
		Where("client_id = ? AND table_id = ? AND status IN ?", clientID, tableID, models.NonTerminalOrderStatuses).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&orders).Error
	if err != nil {
		return nil, apperror.Internal("Aktif sipariş okunamadı", err)
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}
