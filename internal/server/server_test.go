package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"restoran-pos/internal/audit"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/events"
	"restoran-pos/internal/models"
	"restoran-pos/internal/orders"
	"restoran-pos/internal/payments"
	"restoran-pos/internal/ratelimit"
	"restoran-pos/internal/tables"
	"restoran-pos/internal/tenant"
	"restoran-pos/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type harness struct {
	app *fiber.App
	db  *gorm.DB
	fx  *testutil.Fixture
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")
	bus := events.NewMemoryBus()
	rec := audit.NewRecorder(db, 64)
	tableSvc := tables.NewService(db, rec, bus, 5*time.Minute)
	t.Cleanup(func() {
		tableSvc.Wait()
		rec.Flush()
		_ = bus.Close()
	})

	app := NewApp(Deps{
		DB:          db,
		JWTSecret:   testSecret,
		CORSOrigins: []string{"http://localhost:5173"},
		Bus:         bus,
		Tables:      tableSvc,
		Orders:      orders.NewService(db, bus),
		Payments:    payments.NewService(db, bus),
		ClaimLimit:  ratelimit.NewMemoryStore(100, 100, time.Minute),
	})
	return &harness{app: app, db: db, fx: fx}
}

func (h *harness) token(t *testing.T, s models.Staff) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, &s)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

// do müşteri isteklerinde slug başlığını, personel isteklerinde token'ı gönderir
func (h *harness) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set(tenant.HeaderSlug, h.fx.Client.Slug)
	}
	resp, err := h.app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]any{}
	raw, _ := io.ReadAll(resp.Body)
	_ = json.Unmarshal(raw, &out)
	return resp, out
}

func TestDineInFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	waiter := h.token(t, h.fx.Waiter)
	cashier := h.token(t, h.fx.Cashier)

	resp, body := h.do(t, "POST", "/api/tables/claim", "", tables.ClaimInput{TableCode: "5", SessionID: "sess-1", PartySize: 2})
	if resp.StatusCode != fiber.StatusOK || body["action"] != string(tables.ActionClaimed) {
		t.Fatalf("claim = %d %v", resp.StatusCode, body)
	}
	tableID := uint(body["table"].(map[string]any)["id"].(float64))

	resp, body = h.do(t, "POST", "/api/orders", "", orders.PlaceOrderInput{
		TableID:   tableID,
		SessionID: "sess-1",
		Items: []orders.ItemInput{
			{MenuItemID: h.fx.Menu[0].ID, Quantity: 2},
			{MenuItemID: h.fx.Menu[1].ID, Quantity: 2},
		},
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("place = %d %v", resp.StatusCode, body)
	}
	orderID := uint(body["id"].(float64))
	// 500 + 600, %5 GST ve %5 servis
	if total := decimal.RequireFromString(fmt.Sprint(body["grand_total"])); !total.Equal(decimal.NewFromInt(1210)) {
		t.Fatalf("grand total = %v", body["grand_total"])
	}

	// Henüz hazır değil
	resp, body = h.do(t, "POST", fmt.Sprintf("/api/orders/%d/pay", orderID), cashier, payments.SettleInput{Method: models.PaymentCash})
	if resp.StatusCode != fiber.StatusConflict || body["code"] != "INVALID_STATE" {
		t.Fatalf("early pay = %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, "PATCH", fmt.Sprintf("/api/orders/%d/status", orderID), waiter, orders.StatusRequest{Status: models.OrderReady})
	if resp.StatusCode != fiber.StatusOK || body["status"] != string(models.OrderReady) {
		t.Fatalf("status = %d %v", resp.StatusCode, body)
	}

	// Garson ödeme alamaz
	resp, _ = h.do(t, "POST", fmt.Sprintf("/api/orders/%d/pay", orderID), waiter, payments.SettleInput{Method: models.PaymentCash})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("waiter pay = %d", resp.StatusCode)
	}

	resp, body = h.do(t, "POST", fmt.Sprintf("/api/orders/%d/pay", orderID), cashier, payments.SettleInput{Method: models.PaymentUPI})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("pay = %d %v", resp.StatusCode, body)
	}

	resp, body = h.do(t, "POST", "/api/tables/claim", "", tables.ClaimInput{TableCode: "T-05", SessionID: "sess-2"})
	if resp.StatusCode != fiber.StatusConflict || body["status"] != "DIRTY" {
		t.Fatalf("claim dirty table = %d %v", resp.StatusCode, body)
	}

	resp, _ = h.do(t, "POST", fmt.Sprintf("/api/tables/%d/clean", tableID), waiter, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("clean = %d", resp.StatusCode)
	}
	resp, body = h.do(t, "POST", "/api/tables/claim", "", tables.ClaimInput{TableCode: "T-05", SessionID: "sess-2"})
	if resp.StatusCode != fiber.StatusOK || body["action"] != string(tables.ActionClaimed) {
		t.Fatalf("claim after clean = %d %v", resp.StatusCode, body)
	}
}

func TestActiveOrdersRouteIsNotShadowed(t *testing.T) {
	h := newHarness(t)
	resp, _ := h.do(t, "GET", "/api/orders/active", h.token(t, h.fx.Waiter), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("active orders = %d", resp.StatusCode)
	}
}

func TestPublicRoutesSkipTenantResolution(t *testing.T) {
	h := newHarness(t)

	// Slug'sız login tenant middleware'ine takılmamalı; yanlış şifre 401 döner
	req := httptest.NewRequest("POST", "/api/auth/login", strings.NewReader(`{"tenant":"lotus","email":"waiter@lotus","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("login = %d", resp.StatusCode)
	}

	resp, err = h.app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}

	resp, err = h.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || !strings.Contains(string(raw), "restoran_pos_") {
		t.Fatalf("metrics = %d", resp.StatusCode)
	}
}

func TestStaffRoutesRequireToken(t *testing.T) {
	h := newHarness(t)
	resp, body := h.do(t, "GET", "/api/tables", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("tables without token = %d %v", resp.StatusCode, body)
	}

	table := h.fx.TableByCode("T-02")
	resp, body = h.do(t, "GET", fmt.Sprintf("/api/tables/%d", table.ID), h.token(t, h.fx.Waiter), nil)
	if resp.StatusCode != fiber.StatusOK || body["code"] != "T-02" {
		t.Fatalf("get table = %d %v", resp.StatusCode, body)
	}
}

func TestTableLookupIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	other := testutil.Seed(t, h.db, "banyan")

	table := h.fx.TableByCode("T-01")
	resp, body := h.do(t, "GET", fmt.Sprintf("/api/tables/%d", table.ID), h.token(t, other.Manager), nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("cross-tenant table = %d %v", resp.StatusCode, body)
	}
}
