// Package payments ödeme alma ve siparişi kapatma (settlement).
package payments

import (
	"context"
	"errors"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/events"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"
	"restoran-pos/internal/orders"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	bus events.Bus
}

func NewService(db *gorm.DB, bus events.Bus) *Service {
	return &Service{db: db, bus: bus}
}

type SettleInput struct {
	Method models.PaymentMethod `json:"method"`
	// Boşsa siparişin hesaplanan toplamı alınır
	Amount          *decimal.Decimal `json:"amount"`
	ExpectedVersion *int64           `json:"version"`
	ActorID         *uint            `json:"-"`
}

type Settlement struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order"`
	Change  decimal.Decimal `json:"change"`
}

// SettlePayment ödemeyi kaydeder ve siparişi tek transaction içinde kapatır:
// ödeme satırı, sipariş CLOSED, personel sayaçları, masa DIRTY ve iki audit kaydı
// ya birlikte yazılır ya hiçbiri yazılmaz.
func (s *Service) SettlePayment(ctx context.Context, clientID, orderID uint, in SettleInput) (*Settlement, error) {
	defer metrics.TrackDBOperation("settle_payment")(time.Now())

	if !in.Method.Valid() {
		return nil, apperror.New(apperror.CodeInvalidInput, "Ödeme yöntemi CASH, CARD veya UPI olmalı")
	}
	if in.Amount != nil && in.Amount.IsNegative() {
		return nil, apperror.New(apperror.CodeInvalidInput, "Ödeme tutarı negatif olamaz")
	}

	var result *Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := orders.LoadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}

		paid, err := paymentExists(tx, clientID, order.ID)
		if err != nil {
			return err
		}
		if !orders.IsPayable(order.Status) {
			// Ödemesi alınıp kapanmış sipariş için ikinci deneme
			if order.Status == models.OrderClosed && paid {
				return apperror.ErrAlreadyPaid
			}
			return apperror.Newf(apperror.CodeInvalidState, "%s durumundaki sipariş için ödeme alınamaz", order.Status)
		}
		if paid {
			return apperror.ErrAlreadyPaid
		}

		amount := order.GrandTotal
		if in.Amount != nil {
			amount = in.Amount.Round(2)
		}
		if amount.LessThan(order.GrandTotal) {
			return apperror.Newf(apperror.CodeInsufficientAmount, "Ödeme tutarı %s, hesap toplamı %s", amount, order.GrandTotal)
		}
		if in.ExpectedVersion != nil && *in.ExpectedVersion != order.Version {
			metrics.VersionConflicts.WithLabelValues("settle_payment").Inc()
			return apperror.ErrVersionConflict
		}

		payment := models.Payment{
			ClientID:   clientID,
			OrderID:    order.ID,
			Method:     in.Method,
			Amount:     amount,
			Status:     models.PaymentAuthorized,
			ReceivedBy: in.ActorID,
		}
		if err := tx.Create(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.ErrAlreadyPaid
			}
			return apperror.Internal("Ödeme kaydedilemedi", err)
		}

		closedAt := time.Now()
		res := tx.Model(&models.Order{}).
			Where("id = ? AND client_id = ? AND version = ? AND status IN ?", order.ID, clientID, order.Version, orders.PayableStatuses).
			Updates(map[string]any{
				"status":         models.OrderClosed,
				"closed_at":      closedAt,
				"payment_method": in.Method,
				"version":        gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return apperror.Internal("Sipariş kapatılamadı", res.Error)
		}
		if res.RowsAffected == 0 {
			metrics.VersionConflicts.WithLabelValues("settle_payment").Inc()
			return apperror.ErrVersionConflict
		}
		previous := order.Status
		method := in.Method
		order.Status = models.OrderClosed
		order.ClosedAt = &closedAt
		order.PaymentMethod = &method
		order.Version++

		var table models.Table
		if err := tx.Where("id = ? AND client_id = ?", order.TableID, clientID).First(&table).Error; err != nil {
			return apperror.Internal("Masa okunamadı", err)
		}

		waiterID := order.WaiterID
		if waiterID == nil {
			waiterID = table.AssignedWaiterID
		}
		if waiterID != nil {
			upd := tx.Model(&models.Staff{}).
				Where("id = ? AND client_id = ?", *waiterID, clientID).
				Updates(map[string]any{
					"order_count": gorm.Expr("order_count + 1"),
					"sales_total": gorm.Expr("sales_total + ?", order.GrandTotal),
				})
			if upd.Error != nil {
				return apperror.Internal("Personel sayaçları güncellenemedi", upd.Error)
			}
			if upd.RowsAffected == 0 {
				zap.L().Warn("sayaçları güncellenecek personel bulunamadı",
					zap.Uint("client_id", clientID),
					zap.Uint("staff_id", *waiterID),
				)
			}
		}

		if err := tx.Model(&models.Table{}).
			Where("id = ? AND client_id = ?", table.ID, clientID).
			Updates(map[string]any{"status": models.TableDirty, "active_order_id": nil}).Error; err != nil {
			return apperror.Internal("Masa güncellenemedi", err)
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     in.ActorID,
			EntityType:  audit.EntityPayment,
			EntityID:    payment.ID,
			Action:      models.AuditPaymentAuthorized,
			Description: "Ödeme alındı: " + string(in.Method) + " " + amount.StringFixed(2),
			Metadata: map[string]any{
				"order_id":    order.ID,
				"method":      in.Method,
				"amount":      amount,
				"grand_total": order.GrandTotal,
			},
		})
		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     in.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    order.ID,
			Action:      models.AuditOrderClosed,
			Description: "Sipariş kapatıldı, masa " + table.Code + " temizlik bekliyor",
			Metadata: map[string]any{
				"from":       previous,
				"to":         models.OrderClosed,
				"payment_id": payment.ID,
				"waiter_id":  waiterID,
				"table_id":   table.ID,
			},
		})

		result = &Settlement{
			Payment: &payment,
			Order:   order,
			Change:  amount.Sub(order.GrandTotal),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSettlement(string(in.Method), result.Payment.Amount)
	events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.PaymentSettled, result.Payment.ID, result.Payment).OnTable(result.Order.TableID))
	events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.OrderUpdated, result.Order.ID, result.Order).OnTable(result.Order.TableID))
	events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.TableUpdated, result.Order.TableID, map[string]any{
		"id":     result.Order.TableID,
		"status": models.TableDirty,
	}).OnTable(result.Order.TableID))
	return result, nil
}

func paymentExists(tx *gorm.DB, clientID, orderID uint) (bool, error) {
	var count int64
	if err := tx.Model(&models.Payment{}).Where("order_id = ? AND client_id = ?", orderID, clientID).Count(&count).Error; err != nil {
		return false, apperror.Internal("Ödeme kaydı okunamadı", err)
	}
	return count > 0, nil
}
