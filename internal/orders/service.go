// Package orders sipariş yaşam döngüsü: masaya sipariş açma, kalem ekleme/iptal,
// durum geçişleri ve indirim. Her yazım sürüm (version) koşullu yapılır.
package orders

import (
	"context"
	"errors"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/events"
	"restoran-pos/internal/menu"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db  *gorm.DB
	bus events.Bus
}

func NewService(db *gorm.DB, bus events.Bus) *Service {
	return &Service{db: db, bus: bus}
}

type ItemInput struct {
	MenuItemID uint `json:"menuItemId"`
	Quantity   int  `json:"quantity"`
}

// Caller isteği yapan taraf. ActorID boşsa istek müşteriden gelir ve SessionID
// siparişin oturumuyla eşleşmelidir. ExpectedVersion verilirse saklı sürümle
// aynı olmalıdır.
type Caller struct {
	ActorID         *uint
	SessionID       string
	ExpectedVersion *int64
}

type PlaceOrderInput struct {
	TableID       uint        `json:"tableId"`
	SessionID     string      `json:"sessionId"`
	CustomerName  string      `json:"customerName"`
	CustomerPhone string      `json:"customerPhone"`
	PartySize     int         `json:"partySize"`
	Items         []ItemInput `json:"items"`
}

// PlaceOrder alınmış masaya sipariş açar. Masada açık sipariş varsa kalemler
// ona yeni tur olarak eklenir.
func (s *Service) PlaceOrder(ctx context.Context, clientID uint, in PlaceOrderInput, caller Caller) (*models.Order, error) {
	defer metrics.TrackDBOperation("place_order")(time.Now())

	if err := validateItems(in.Items); err != nil {
		return nil, err
	}

	var (
		order   *models.Order
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.Where("id = ? AND client_id = ?", in.TableID, clientID).First(&table).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperror.ErrTableNotFound
			}
			return apperror.Internal("Masa okunamadı", err)
		}

		switch table.Status {
		case models.TableDirty:
			return apperror.ErrTableDirty
		case models.TableVacant:
			return apperror.New(apperror.CodeInvalidState, "Sipariş için önce masa alınmalı")
		}
		if caller.ActorID == nil && table.SessionID != "" && caller.SessionID != table.SessionID {
			return apperror.New(apperror.CodeForbidden, "Bu masanın oturumu size ait değil")
		}

		if table.ActiveOrderID != nil {
			existing, err := loadOrder(tx, clientID, *table.ActiveOrderID)
			if err != nil {
				return err
			}
			if !existing.Status.IsTerminal() {
				if err := acceptsItemChanges(existing.Status); err != nil {
					return err
				}
				order, err = s.appendItems(tx, existing, in.Items, caller.ActorID)
				return err
			}
		}

		rates, err := clientRates(tx, clientID)
		if err != nil {
			return err
		}
		catalog, err := menu.Lookup(tx, clientID, menuIDs(in.Items))
		if err != nil {
			return err
		}

		waiterID := table.AssignedWaiterID
		if caller.ActorID != nil {
			waiterID = caller.ActorID
		}
		customerName := in.CustomerName
		if customerName == "" {
			customerName = table.CustomerName
		}
		partySize := in.PartySize
		if partySize == 0 {
			partySize = table.PartySize
		}

		items := snapshotItems(clientID, in.Items, catalog)
		o := models.Order{
			ClientID:        clientID,
			TableID:         table.ID,
			SessionID:       table.SessionID,
			Status:          models.OrderNew,
			Version:         1,
			WaiterID:        waiterID,
			CustomerName:    customerName,
			CustomerPhone:   in.CustomerPhone,
			PartySize:       partySize,
			DiscountPercent: decimal.Zero,
		}
		Compute(items, o.DiscountPercent, rates).apply(&o)

		if err := tx.Omit(clause.Associations).Create(&o).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperror.ErrRaceCondition
			}
			return apperror.Internal("Sipariş oluşturulamadı", err)
		}
		for i := range items {
			items[i].OrderID = o.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return apperror.Internal("Sipariş kalemleri kaydedilemedi", err)
		}
		o.Items = items

		// Masa başka bir siparişe bağlandıysa bu istek yarışı kaybetmiştir
		bind := tx.Model(&models.Table{}).
			Where("id = ? AND client_id = ? AND status = ? AND active_order_id IS NULL", table.ID, clientID, models.TableActive).
			Update("active_order_id", o.ID)
		if bind.Error != nil {
			return apperror.Internal("Masa siparişe bağlanamadı", bind.Error)
		}
		if bind.RowsAffected == 0 {
			return apperror.ErrRaceCondition
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     caller.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditOrderCreated,
			Description: "Sipariş açıldı: " + table.Code,
			Metadata: map[string]any{
				"table_id":    table.ID,
				"items":       len(items),
				"grand_total": o.GrandTotal,
			},
		})

		order = &o
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	if created {
		events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.TableUpdated, order.TableID, map[string]any{
			"id":              order.TableID,
			"active_order_id": order.ID,
		}).OnTable(order.TableID))
	}
	return order, nil
}

// AddItems açık siparişe kalem ekler. Fiyat ve isim menüden o anki haliyle kopyalanır.
func (s *Service) AddItems(ctx context.Context, clientID, orderID uint, items []ItemInput, caller Caller) (*models.Order, error) {
	defer metrics.TrackDBOperation("add_items")(time.Now())

	if err := validateItems(items); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o, caller); err != nil {
			return err
		}
		if err := acceptsItemChanges(o.Status); err != nil {
			return err
		}
		if err := checkVersion(o, caller.ExpectedVersion, "add_items"); err != nil {
			return err
		}
		order, err = s.appendItems(tx, o, items, caller.ActorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	return order, nil
}

// CancelItem kalemi siparişten çıkarır. Sipariş NEW iken kalem silinir,
// mutfağa düştükten sonra CANCELLED olarak işaretlenir ve iz kalır.
func (s *Service) CancelItem(ctx context.Context, clientID, orderID, itemID uint, caller Caller) (*models.Order, error) {
	defer metrics.TrackDBOperation("cancel_item")(time.Now())

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o, caller); err != nil {
			return err
		}
		if err := acceptsItemChanges(o.Status); err != nil {
			return err
		}
		if err := checkVersion(o, caller.ExpectedVersion, "cancel_item"); err != nil {
			return err
		}

		item := findItem(o, itemID)
		if item == nil {
			return apperror.New(apperror.CodeNotFound, "Sipariş kalemi bulunamadı")
		}
		if item.Status == models.ItemCancelled {
			return apperror.New(apperror.CodeInvalidState, "Kalem zaten iptal edilmiş")
		}

		mode := "cancelled"
		if o.Status == models.OrderNew {
			mode = "deleted"
			err = tx.Where("id = ? AND order_id = ? AND client_id = ?", item.ID, o.ID, clientID).
				Delete(&models.OrderItem{}).Error
		} else {
			now := time.Now()
			err = tx.Model(&models.OrderItem{}).
				Where("id = ? AND order_id = ? AND client_id = ?", item.ID, o.ID, clientID).
				Updates(map[string]any{
					"status":          models.ItemCancelled,
					"cancelled_at":    now,
					"cancelled_by_id": caller.ActorID,
				}).Error
		}
		if err != nil {
			return apperror.Internal("Kalem iptal edilemedi", err)
		}

		if err := s.recompute(tx, o, nil, "cancel_item"); err != nil {
			return err
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     caller.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditItemCancelled,
			Description: "Kalem iptal edildi: " + item.Name,
			Metadata: map[string]any{
				"item_id":     item.ID,
				"menu_item":   item.MenuItemID,
				"quantity":    item.Quantity,
				"unit_price":  item.UnitPrice,
				"mode":        mode,
				"grand_total": o.GrandTotal,
			},
		})

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	return order, nil
}

// UpdateStatus siparişi ileri taşır veya iptal eder. İptal masayı siparişten
// ayırır ve temizlik için DIRTY yapar.
func (s *Service) UpdateStatus(ctx context.Context, clientID, orderID uint, to models.OrderStatus, caller Caller) (*models.Order, error) {
	defer metrics.TrackDBOperation("update_status")(time.Now())

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}
		if err := authorize(o, caller); err != nil {
			return err
		}
		// Müşteri yalnızca hesap isteyebilir
		if caller.ActorID == nil && to != models.OrderBillRequested {
			return apperror.New(apperror.CodeForbidden, "Bu durum değişikliği personel gerektirir")
		}
		if err := CanTransition(o.Status, to); err != nil {
			return err
		}
		if err := checkVersion(o, caller.ExpectedVersion, "update_status"); err != nil {
			return err
		}

		from := o.Status
		if err := s.save(tx, o, map[string]any{"status": to}, "update_status"); err != nil {
			return err
		}
		o.Status = to

		if to == models.OrderCancelled {
			if err := tx.Model(&models.Table{}).
				Where("id = ? AND client_id = ? AND active_order_id = ?", o.TableID, clientID, o.ID).
				Updates(map[string]any{"status": models.TableDirty, "active_order_id": nil}).Error; err != nil {
				return apperror.Internal("Masa serbest bırakılamadı", err)
			}
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     caller.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditStatusChanged,
			Description: string(from) + " -> " + string(to),
			Metadata:    map[string]any{"from": from, "to": to, "version": o.Version},
		})

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	if to == models.OrderCancelled {
		events.PublishBestEffort(ctx, s.bus, events.New(clientID, events.TableUpdated, order.TableID, map[string]any{
			"id":     order.TableID,
			"status": models.TableDirty,
		}).OnTable(order.TableID))
	}
	return order, nil
}

// UpdateItemStatus mutfak ekranından kalem bazlı ilerleme
func (s *Service) UpdateItemStatus(ctx context.Context, clientID, orderID, itemID uint, to models.OrderItemStatus, caller Caller) (*models.Order, error) {
	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return apperror.ErrOrderClosed
		}
		if err := checkVersion(o, caller.ExpectedVersion, "update_item_status"); err != nil {
			return err
		}

		item := findItem(o, itemID)
		if item == nil {
			return apperror.New(apperror.CodeNotFound, "Sipariş kalemi bulunamadı")
		}
		if err := canAdvanceItem(item.Status, to); err != nil {
			return err
		}

		from := item.Status
		if err := tx.Model(&models.OrderItem{}).
			Where("id = ? AND order_id = ? AND client_id = ? AND status = ?", item.ID, o.ID, clientID, from).
			Update("status", to).Error; err != nil {
			return apperror.Internal("Kalem güncellenemedi", err)
		}
		item.Status = to

		if err := s.save(tx, o, map[string]any{}, "update_item_status"); err != nil {
			return err
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     caller.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditItemStatus,
			Description: item.Name + ": " + string(from) + " -> " + string(to),
			Metadata:    map[string]any{"item_id": item.ID, "from": from, "to": to},
		})

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	return order, nil
}

// ApplyDiscount yüzde indirim uygular (0-100), tutarlar yeniden hesaplanır
func (s *Service) ApplyDiscount(ctx context.Context, clientID, orderID uint, percent decimal.Decimal, caller Caller) (*models.Order, error) {
	if percent.IsNegative() || percent.GreaterThan(hundred) {
		return nil, apperror.New(apperror.CodeInvalidInput, "İndirim yüzdesi 0 ile 100 arasında olmalı")
	}
	percent = percent.Round(2)

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := loadOrder(tx, clientID, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() {
			return apperror.ErrOrderClosed
		}
		if err := checkVersion(o, caller.ExpectedVersion, "apply_discount"); err != nil {
			return err
		}

		previous := o.DiscountPercent
		o.DiscountPercent = percent
		if err := s.recompute(tx, o, map[string]any{"discount_percent": percent}, "apply_discount"); err != nil {
			return err
		}

		audit.WriteInTx(tx, audit.Entry{
			ClientID:    clientID,
			ActorID:     caller.ActorID,
			EntityType:  audit.EntityOrder,
			EntityID:    o.ID,
			Action:      models.AuditDiscountApplied,
			Description: "İndirim uygulandı: %" + percent.String(),
			Metadata: map[string]any{
				"from":        previous,
				"to":          percent,
				"grand_total": o.GrandTotal,
			},
		})

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishOrder(ctx, order)
	return order, nil
}

func (s *Service) GetOrder(ctx context.Context, clientID, orderID uint, caller Caller) (*models.Order, error) {
	o, err := loadOrder(s.db.WithContext(ctx), clientID, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(o, caller); err != nil {
		return nil, err
	}
	return o, nil
}

// ListActiveOrders mutfak ekranı akışı: kapanmamış siparişler, eskiden yeniye
func (s *Service) ListActiveOrders(ctx context.Context, clientID uint, status models.OrderStatus) ([]models.Order, error) {
	q := s.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("client_id = ?", clientID)

	if status != "" {
		if status.IsTerminal() {
			return nil, apperror.New(apperror.CodeInvalidInput, "Sadece açık durumlar listelenebilir")
		}
		q = q.Where("status = ?", status)
	} else {
		q = q.Where("status IN ?", models.NonTerminalOrderStatuses)
	}

	var list []models.Order
	if err := q.Order("created_at, id").Find(&list).Error; err != nil {
		return nil, apperror.Internal("Siparişler listelenemedi", err)
	}
	return list, nil
}

// -------------------------
// Transaction içi yardımcılar
// -------------------------

func (s *Service) appendItems(tx *gorm.DB, o *models.Order, in []ItemInput, actorID *uint) (*models.Order, error) {
	catalog, err := menu.Lookup(tx, o.ClientID, menuIDs(in))
	if err != nil {
		return nil, err
	}

	items := snapshotItems(o.ClientID, in, catalog)
	for i := range items {
		items[i].OrderID = o.ID
	}
	if err := tx.Create(&items).Error; err != nil {
		return nil, apperror.Internal("Sipariş kalemleri kaydedilemedi", err)
	}

	if err := s.recompute(tx, o, nil, "add_items"); err != nil {
		return nil, err
	}

	added := make([]map[string]any, 0, len(items))
	for _, it := range items {
		added = append(added, map[string]any{
			"menu_item":  it.MenuItemID,
			"name":       it.Name,
			"quantity":   it.Quantity,
			"unit_price": it.UnitPrice,
		})
	}
	audit.WriteInTx(tx, audit.Entry{
		ClientID:    o.ClientID,
		ActorID:     actorID,
		EntityType:  audit.EntityOrder,
		EntityID:    o.ID,
		Action:      models.AuditItemsAdded,
		Description: "Siparişe kalem eklendi",
		Metadata:    map[string]any{"items": added, "grand_total": o.GrandTotal},
	})
	return o, nil
}

// recompute kalemleri yeniden okur, tutarları baştan hesaplar ve siparişi
// sürüm koşullu kaydeder. extra aynı UPDATE'e eklenecek kolonlardır.
func (s *Service) recompute(tx *gorm.DB, o *models.Order, extra map[string]any, op string) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ? AND client_id = ?", o.ID, o.ClientID).Order("id").Find(&items).Error; err != nil {
		return apperror.Internal("Sipariş kalemleri okunamadı", err)
	}
	rates, err := clientRates(tx, o.ClientID)
	if err != nil {
		return err
	}

	totals := Compute(items, o.DiscountPercent, rates)
	fields := totals.columns()
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.save(tx, o, fields, op); err != nil {
		return err
	}
	totals.apply(o)
	o.Items = items
	return nil
}

// save siparişi okunan sürüm üzerinden koşullu günceller ve sürümü artırır.
// Arada başka bir yazım olduysa VERSION_CONFLICT döner.
func (s *Service) save(tx *gorm.DB, o *models.Order, fields map[string]any, op string) error {
	fields["version"] = gorm.Expr("version + 1")
	res := tx.Model(&models.Order{}).
		Where("id = ? AND client_id = ? AND version = ?", o.ID, o.ClientID, o.Version).
		Updates(fields)
	if res.Error != nil {
		return apperror.Internal("Sipariş kaydedilemedi", res.Error)
	}
	if res.RowsAffected == 0 {
		metrics.VersionConflicts.WithLabelValues(op).Inc()
		return apperror.ErrVersionConflict
	}
	o.Version++
	return nil
}

func (s *Service) publishOrder(ctx context.Context, o *models.Order) {
	events.PublishBestEffort(ctx, s.bus, events.New(o.ClientID, events.OrderUpdated, o.ID, o).OnTable(o.TableID))
}

// LoadOrder siparişi kalemleriyle, işletme kapsamında okur
func LoadOrder(db *gorm.DB, clientID, orderID uint) (*models.Order, error) {
	return loadOrder(db, clientID, orderID)
}

func loadOrder(db *gorm.DB, clientID, orderID uint) (*models.Order, error) {
	var o models.Order
	err := db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).Where("id = ? AND client_id = ?", orderID, clientID).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Internal("Sipariş okunamadı", err)
	}
	return &o, nil
}

func clientRates(db *gorm.DB, clientID uint) (Rates, error) {
	var c models.Client
	if err := db.Select("id", "gst_rate", "service_charge_rate").First(&c, clientID).Error; err != nil {
		return Rates{}, apperror.Internal("İşletme oranları okunamadı", err)
	}
	return RatesOf(&c), nil
}

func checkVersion(o *models.Order, expected *int64, op string) error {
	if expected != nil && *expected != o.Version {
		metrics.VersionConflicts.WithLabelValues(op).Inc()
		return apperror.ErrVersionConflict
	}
	return nil
}

func authorize(o *models.Order, caller Caller) error {
	if caller.ActorID == nil && o.SessionID != "" && caller.SessionID != o.SessionID {
		return apperror.New(apperror.CodeForbidden, "Bu sipariş oturumunuza ait değil")
	}
	return nil
}

func validateItems(items []ItemInput) error {
	if len(items) == 0 {
		return apperror.New(apperror.CodeInvalidInput, "En az bir ürün seçilmeli")
	}
	for _, it := range items {
		if it.MenuItemID == 0 {
			return apperror.New(apperror.CodeInvalidInput, "Menü ürünü zorunlu")
		}
		if it.Quantity < 1 {
			return apperror.New(apperror.CodeInvalidInput, "Adet en az 1 olmalı")
		}
	}
	return nil
}

func menuIDs(items []ItemInput) []uint {
	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MenuItemID)
	}
	return ids
}

func snapshotItems(clientID uint, in []ItemInput, catalog map[uint]models.MenuItem) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(in))
	for _, it := range in {
		m := catalog[it.MenuItemID]
		items = append(items, models.OrderItem{
			ClientID:   clientID,
			MenuItemID: m.ID,
			Name:       m.Name,
			UnitPrice:  m.Price,
			Quantity:   it.Quantity,
			Status:     models.ItemPending,
		})
	}
	return items
}

func findItem(o *models.Order, itemID uint) *models.OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}
