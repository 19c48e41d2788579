package events

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const keepAliveInterval = 20 * time.Second

// tableScope müşterinin akışını oturumunun masasıyla sınırlar. Masa başka bir
// oturuma geçtiğinde akış kapanır.
type tableScope struct {
	db        *gorm.DB
	clientID  uint
	tableID   uint
	sessionID string
}

func openTableScope(ctx context.Context, db *gorm.DB, clientID uint, sessionID string) (*tableScope, error) {
	if sessionID == "" {
		return nil, apperror.New(apperror.CodeForbidden, "Canlı akış için masa oturumu gerekli")
	}
	var table models.Table
	err := db.WithContext(ctx).
		Where("client_id = ? AND session_id = ? AND status <> ?", clientID, sessionID, models.TableVacant).
		First(&table).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.New(apperror.CodeForbidden, "Oturum bir masaya bağlı değil")
		}
		return nil, apperror.Internal("Masa okunamadı", err)
	}
	return &tableScope{db: db, clientID: clientID, tableID: table.ID, sessionID: sessionID}, nil
}

// admit olayın iletilip iletilmeyeceğini, alive ise oturumun sürüp sürmediğini döner
func (s *tableScope) admit(ctx context.Context, e Event) (forward, alive bool) {
	if e.TableID != s.tableID {
		return false, true
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Table{}).
		Where("id = ? AND client_id = ? AND session_id = ?", s.tableID, s.clientID, s.sessionID).
		Count(&count).Error
	if err != nil || count == 0 {
		return false, false
	}
	return true, true
}

// StreamHandler GET /api/live: olayları server-sent events olarak akıtır.
// Personel işletmenin tüm olaylarını alır; müşteri ?sessionId= ile sadece kendi
// masasının olaylarını.
func StreamHandler(bus Bus, db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		client, err := tenant.FromCtx(c)
		if err != nil {
			return err
		}

		var scope *tableScope
		if auth.ActorID(c) == nil {
			scope, err = openTableScope(c.UserContext(), db, client.ID, c.Query("sessionId"))
			if err != nil {
				return err
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := bus.Subscribe(ctx, client.ID)
		if err != nil {
			cancel()
			return fiber.NewError(fiber.StatusServiceUnavailable, "Canlı akış başlatılamadı")
		}

		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")

		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(keepAliveInterval)
			defer ticker.Stop()

			for {
				select {
				case e, ok := <-ch:
					if !ok {
						return
					}
					if scope != nil {
						forward, alive := scope.admit(ctx, e)
						if !alive {
							return
						}
						if !forward {
							continue
						}
					}
					data, err := json.Marshal(e)
					if err != nil {
						continue
					}
					fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
				case <-ticker.C:
					fmt.Fprint(w, ": ping\n\n")
				}
				// İstemci koptuysa Flush hata döner
				if err := w.Flush(); err != nil {
					zap.L().Debug("canlı akış kapandı", zap.Uint("client_id", client.ID))
					return
				}
			}
		}))
		return nil
	}
}
