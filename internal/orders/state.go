package orders

import (
	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
)

// Akış yalnızca ileri gider. CANCELLED her açık durumdan, CLOSED sadece ödeme ile.
// Mutfak adımları atlanabilir (NEW -> READY) ama hesap ancak READY veya SERVED
// sonrasında istenebilir.
var statusRank = map[models.OrderStatus]int{
	models.OrderNew:           0,
	models.OrderPreparing:     1,
	models.OrderReady:         2,
	models.OrderServed:        3,
	models.OrderBillRequested: 4,
}

var itemRank = map[models.OrderItemStatus]int{
	models.ItemPending:   0,
	models.ItemPreparing: 1,
	models.ItemReady:     2,
	models.ItemServed:    3,
}

// PayableStatuses ödeme alınabilecek durumlar
var PayableStatuses = []models.OrderStatus{
	models.OrderReady,
	models.OrderServed,
	models.OrderBillRequested,
}

func IsPayable(s models.OrderStatus) bool {
	for _, p := range PayableStatuses {
		if p == s {
			return true
		}
	}
	return false
}

func CanTransition(from, to models.OrderStatus) error {
	if from.IsTerminal() {
		return apperror.ErrOrderClosed
	}
	switch to {
	case models.OrderCancelled:
		return nil
	case models.OrderClosed:
		return apperror.New(apperror.CodeInvalidState, "Sipariş yalnızca ödeme ile kapatılabilir")
	}

	toRank, ok := statusRank[to]
	if !ok {
		return apperror.Newf(apperror.CodeInvalidInput, "Bilinmeyen sipariş durumu: %s", to)
	}
	if toRank <= statusRank[from] {
		return apperror.Newf(apperror.CodeInvalidState, "%s durumundan %s durumuna geçilemez", from, to)
	}
	if to == models.OrderBillRequested && from != models.OrderReady && from != models.OrderServed {
		return apperror.Newf(apperror.CodeInvalidState, "Hesap %s durumunda istenemez, sipariş henüz hazır değil", from)
	}
	return nil
}

// acceptsItemChanges kalem ekleme/iptal sadece NEW ve PREPARING'de
func acceptsItemChanges(s models.OrderStatus) error {
	switch {
	case s.IsTerminal():
		return apperror.ErrOrderClosed
	case s == models.OrderNew, s == models.OrderPreparing:
		return nil
	default:
		return apperror.Newf(apperror.CodeInvalidState, "%s durumundaki siparişte kalem değiştirilemez", s)
	}
}

func canAdvanceItem(from, to models.OrderItemStatus) error {
	if from == models.ItemCancelled {
		return apperror.New(apperror.CodeInvalidState, "İptal edilmiş kalem güncellenemez")
	}
	toRank, ok := itemRank[to]
	if !ok {
		return apperror.Newf(apperror.CodeInvalidInput, "Geçersiz kalem durumu: %s", to)
	}
	if toRank <= itemRank[from] {
		return apperror.Newf(apperror.CodeInvalidState, "Kalem %s durumundan %s durumuna geçemez", from, to)
	}
	return nil
}
