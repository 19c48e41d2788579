package orders

import (
	"restoran-pos/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Rates struct {
	GSTPercent           decimal.Decimal
	ServiceChargePercent decimal.Decimal
}

func RatesOf(c *models.Client) Rates {
	return Rates{GSTPercent: c.GSTRate, ServiceChargePercent: c.ServiceChargeRate}
}

type Totals struct {
	Subtotal            decimal.Decimal
	DiscountAmount      decimal.Decimal
	GSTAmount           decimal.Decimal
	ServiceChargeAmount decimal.Decimal
	GrandTotal          decimal.Decimal
}

// Compute tutarları kalem listesinden baştan hesaplar; iptal edilen kalemler sayılmaz.
// Vergi ve servis ücreti indirim sonrası tutar üzerinden alınır.
func Compute(items []models.OrderItem, discountPercent decimal.Decimal, r Rates) Totals {
	subtotal := decimal.Zero
	for i := range items {
		if items[i].Status == models.ItemCancelled {
			continue
		}
		subtotal = subtotal.Add(items[i].LineTotal())
	}
	subtotal = subtotal.Round(2)

	discount := subtotal.Mul(discountPercent).Div(hundred).Round(2)
	taxable := subtotal.Sub(discount)
	gst := taxable.Mul(r.GSTPercent).Div(hundred).Round(2)
	service := taxable.Mul(r.ServiceChargePercent).Div(hundred).Round(2)

	return Totals{
		Subtotal:            subtotal,
		DiscountAmount:      discount,
		GSTAmount:           gst,
		ServiceChargeAmount: service,
		GrandTotal:          taxable.Add(gst).Add(service).Round(2),
	}
}

func (t Totals) apply(o *models.Order) {
	o.Subtotal = t.Subtotal
	o.DiscountAmount = t.DiscountAmount
	o.GSTAmount = t.GSTAmount
	o.ServiceChargeAmount = t.ServiceChargeAmount
	o.GrandTotal = t.GrandTotal
}

func (t Totals) columns() map[string]any {
	return map[string]any{
		"subtotal":              t.Subtotal,
		"discount_amount":       t.DiscountAmount,
		"gst_amount":            t.GSTAmount,
		"service_charge_amount": t.ServiceChargeAmount,
		"grand_total":           t.GrandTotal,
	}
}
