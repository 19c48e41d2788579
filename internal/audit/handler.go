package audit

import (
	"encoding/json"
	"fmt"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	ActorID     *uint              `json:"actor_id"`
	ActorName   string             `json:"actor_name,omitempty"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Metadata    json.RawMessage    `json:"metadata"`
}

// GET /api/audit-logs?entity_type=order&entity_id=1&actor_id=2&action=STATUS_CHANGED&limit=100
// Kayıtlar sadece okunur; geri alma yoktur.
func ListAuditLogsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		dbq := db.WithContext(c.UserContext()).Model(&models.AuditLog{}).Where("client_id = ?", client.ID)

		// Entity type filtresi
		if entityType := c.Query("entity_type"); entityType != "" {
			dbq = dbq.Where("entity_type = ?", entityType)
		}

		// Entity ID filtresi
		if s := c.Query("entity_id"); s != "" {
			var eid uint
			if _, err := fmt.Sscan(s, &eid); err != nil || eid == 0 {
				return apperror.New(apperror.CodeInvalidInput, "Geçersiz entity_id")
			}
			dbq = dbq.Where("entity_id = ?", eid)
		}

		// Aktör filtresi
		if s := c.Query("actor_id"); s != "" {
			var aid uint
			if _, err := fmt.Sscan(s, &aid); err != nil || aid == 0 {
				return apperror.New(apperror.CodeInvalidInput, "Geçersiz actor_id")
			}
			dbq = dbq.Where("actor_id = ?", aid)
		}

		if action := c.Query("action"); action != "" {
			dbq = dbq.Where("action = ?", action)
		}

		limit := c.QueryInt("limit", defaultPageSize)
		if limit <= 0 || limit > maxPageSize {
			limit = defaultPageSize
		}

		var logs []models.AuditLog
		if err := dbq.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error; err != nil {
			return apperror.Internal("Loglar listelenemedi", err)
		}

		// Aktör isimleri tek sorguda
		names := map[uint]string{}
		var actorIDs []uint
		for _, l := range logs {
			if l.ActorID != nil {
				actorIDs = append(actorIDs, *l.ActorID)
			}
		}
		if len(actorIDs) > 0 {
			var staff []models.Staff
			if err := db.Select("id", "name").Where("client_id = ? AND id IN ?", client.ID, actorIDs).Find(&staff).Error; err != nil {
				return apperror.Internal("Personel okunamadı", err)
			}
			for _, s := range staff {
				names[s.ID] = s.Name
			}
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			r := AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				ActorID:     log.ActorID,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				Description: log.Description,
			}
			if log.Metadata != "" {
				r.Metadata = json.RawMessage(log.Metadata)
			}
			if log.ActorID != nil {
				r.ActorName = names[*log.ActorID]
			}
			resp = append(resp, r)
		}

		return c.JSON(resp)
	}
}
