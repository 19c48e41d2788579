package tables

import (
	"context"
	"sync"
	"testing"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/events"
	"restoran-pos/internal/models"
	"restoran-pos/internal/testutil"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *audit.Recorder, *testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")
	rec := audit.NewRecorder(db, 256)
	bus := events.NewMemoryBus()
	t.Cleanup(func() { _ = bus.Close() })
	return NewService(db, rec, bus, 5*time.Minute), db, rec, fx
}

func TestNormalizeCode(t *testing.T) {
	cases := map[string]string{
		"5":       "T-05",
		"05":      "T-05",
		"T5":      "T-05",
		"t-05":    "T-05",
		" T - 5 ": "T-05",
		"0005":    "T-05",
		"12":      "T-12",
		"123":     "T-123",
		"0":       "T-00",
		"patio-1": "PATIO-1",
		"vip":     "VIP",
		"":        "",
		"   ":     "",
	}
	for in, want := range cases {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClaimVacantTable(t *testing.T) {
	svc, db, rec, fx := newTestService(t)
	ctx := context.Background()

	res, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "1", CustomerName: "Asha", PartySize: 3})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if res.Action != ActionClaimed || res.SessionID == "" {
		t.Fatalf("unexpected result %+v", res)
	}

	var stored models.Table
	db.First(&stored, fx.TableByCode("T-01").ID)
	if stored.Status != models.TableActive || stored.SessionID != res.SessionID || stored.PartySize != 3 {
		t.Fatalf("table not claimed: %+v", stored)
	}

	rec.Flush()
	var logs int64
	db.Model(&models.AuditLog{}).Where("client_id = ? AND action = ?", fx.Client.ID, models.AuditTableClaimed).Count(&logs)
	if logs != 1 {
		t.Fatalf("expected 1 claim audit row, got %d", logs)
	}
}

func TestClaimConcurrentSingleWinner(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	ctx := context.Background()

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
		joined  int
		raced   int
		other   []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "T-02"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil && res.Action == ActionClaimed:
				claimed++
			case err == nil && res.Action == ActionJoin:
				joined++
			case apperror.CodeOf(err) == apperror.CodeRaceCondition:
				raced++
			default:
				other = append(other, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if claimed != 1 {
		t.Fatalf("expected exactly one CLAIMED, got %d (join=%d race=%d)", claimed, joined, raced)
	}
	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if claimed+joined+raced != n {
		t.Fatalf("lost results: %d+%d+%d != %d", claimed, joined, raced, n)
	}

	var stored models.Table
	db.First(&stored, fx.TableByCode("T-02").ID)
	if stored.Status != models.TableActive {
		t.Fatalf("table status = %s", stored.Status)
	}
}

func TestClaimEquivalentCodesRace(t *testing.T) {
	svc, _, _, fx := newTestService(t)
	ctx := context.Background()

	codes := []string{"5", "05"}
	results := make([]*ClaimResult, len(codes))
	errs := make([]error, len(codes))

	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			results[i], errs[i] = svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: code})
		}(i, code)
	}
	wg.Wait()

	claimed := 0
	for i := range codes {
		switch {
		case errs[i] == nil && results[i].Action == ActionClaimed:
			claimed++
		case errs[i] == nil && results[i].Action == ActionJoin:
		case apperror.CodeOf(errs[i]) == apperror.CodeRaceCondition:
		default:
			t.Fatalf("code %q: unexpected outcome %v %+v", codes[i], errs[i], results[i])
		}
	}
	if claimed != 1 {
		t.Fatalf("expected one CLAIMED, got %d", claimed)
	}
}

func TestClaimDirtyTableIsUntouched(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	table := fx.TableByCode("T-05")
	db.Model(&models.Table{}).Where("id = ?", table.ID).Update("status", models.TableDirty)

	_, err := svc.ClaimTable(context.Background(), fx.Client.ID, ClaimInput{TableCode: "T-05"})
	if apperror.CodeOf(err) != apperror.CodeTableDirty {
		t.Fatalf("expected DIRTY, got %v", err)
	}

	var stored models.Table
	db.First(&stored, table.ID)
	if stored.Status != models.TableDirty || stored.SessionID != "" {
		t.Fatalf("dirty table mutated: %+v", stored)
	}
	var orders int64
	db.Model(&models.Order{}).Where("table_id = ?", table.ID).Count(&orders)
	if orders != 0 {
		t.Fatalf("claim created %d orders", orders)
	}
}

func TestClaimJoinsActiveOrder(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	ctx := context.Background()

	first, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "T-01"})
	if err != nil {
		t.Fatal(err)
	}

	// Sipariş yokken ikinci müşteri aynı oturuma katılır
	second, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "01"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Action != ActionJoin || second.SessionID != first.SessionID || second.ActiveOrder != nil {
		t.Fatalf("expected JOIN without order, got %+v", second)
	}

	table := fx.TableByCode("T-01")
	order := models.Order{ClientID: fx.Client.ID, TableID: table.ID, Status: models.OrderPreparing, Version: 1}
	if err := db.Create(&order).Error; err != nil {
		t.Fatal(err)
	}
	db.Model(&models.Table{}).Where("id = ?", table.ID).Update("active_order_id", order.ID)

	third, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "t1"})
	if err != nil {
		t.Fatal(err)
	}
	if third.Action != ActionJoin || third.ActiveOrder == nil || third.ActiveOrder.ID != order.ID {
		t.Fatalf("expected JOIN with order %d, got %+v", order.ID, third)
	}
}

func TestClaimIsTenantScoped(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	other := testutil.Seed(t, db, "banyan")

	// İki işletmede de T-01 var; biri alınınca diğeri etkilenmemeli
	if _, err := svc.ClaimTable(context.Background(), fx.Client.ID, ClaimInput{TableCode: "1"}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ClaimTable(context.Background(), other.Client.ID, ClaimInput{TableCode: "1"})
	if err != nil || res.Action != ActionClaimed {
		t.Fatalf("other tenant's table should be independently claimable: %v %+v", err, res)
	}

	db.Create(&models.Table{ClientID: other.Client.ID, Code: "T-09", Status: models.TableVacant})
	_, err = svc.ClaimTable(context.Background(), fx.Client.ID, ClaimInput{TableCode: "9"})
	if apperror.CodeOf(err) != apperror.CodeTableNotFound {
		t.Fatalf("expected TABLE_NOT_FOUND across tenants, got %v", err)
	}
}

func TestListTablesReclaimsGhosts(t *testing.T) {
	svc, db, rec, fx := newTestService(t)
	ctx := context.Background()

	old := time.Now().Add(-10 * time.Minute)
	fresh := time.Now().Add(-time.Minute)
	ghost := fx.TableByCode("T-01")
	busy := fx.TableByCode("T-02")
	db.Model(&models.Table{}).Where("id = ?", ghost.ID).
		Updates(map[string]any{"status": models.TableActive, "session_id": "s1", "claimed_at": old})
	db.Model(&models.Table{}).Where("id = ?", busy.ID).
		Updates(map[string]any{"status": models.TableActive, "session_id": "s2", "claimed_at": fresh})

	list, err := svc.ListTables(ctx, fx.Client.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	byCode := map[string]models.Table{}
	for _, tbl := range list {
		byCode[tbl.Code] = tbl
	}
	if byCode["T-01"].Status != models.TableVacant {
		t.Fatalf("ghost not flipped in view: %s", byCode["T-01"].Status)
	}
	if byCode["T-02"].Status != models.TableActive {
		t.Fatalf("fresh claim should stay ACTIVE: %s", byCode["T-02"].Status)
	}

	svc.Wait()
	var stored models.Table
	db.First(&stored, ghost.ID)
	if stored.Status != models.TableVacant || stored.ClaimedAt != nil {
		t.Fatalf("ghost not persisted: %+v", stored)
	}

	rec.Flush()
	var logs int64
	db.Model(&models.AuditLog{}).Where("action = ?", models.AuditTableReclaimed).Count(&logs)
	if logs != 1 {
		t.Fatalf("expected one reclaim audit row, got %d", logs)
	}
}

func TestClaimReclaimsGhostTable(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	table := fx.TableByCode("T-05")
	db.Model(&models.Table{}).Where("id = ?", table.ID).Updates(map[string]any{
		"status":     models.TableActive,
		"session_id": "abandoned",
		"claimed_at": time.Now().Add(-time.Hour),
	})

	res, err := svc.ClaimTable(context.Background(), fx.Client.ID, ClaimInput{TableCode: "5"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Action != ActionClaimed || res.SessionID == "abandoned" {
		t.Fatalf("expected fresh claim of ghost table, got %+v", res)
	}
}

func TestResetTableCancelsOpenOrders(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	ctx := context.Background()
	table := fx.TableByCode("T-02")

	if _, err := svc.ClaimTable(ctx, fx.Client.ID, ClaimInput{TableCode: "2"}); err != nil {
		t.Fatal(err)
	}
	order := models.Order{ClientID: fx.Client.ID, TableID: table.ID, Status: models.OrderServed, Version: 3, GrandTotal: decimal.NewFromInt(100)}
	db.Create(&order)
	db.Model(&models.Table{}).Where("id = ?", table.ID).Update("active_order_id", order.ID)

	got, err := svc.ResetTable(ctx, table.ID, fx.Client.ID, &fx.Manager.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TableVacant || got.ActiveOrderID != nil || got.SessionID != "" {
		t.Fatalf("table not reset: %+v", got)
	}

	var stored models.Order
	db.First(&stored, order.ID)
	if stored.Status != models.OrderCancelled || stored.Version != 4 {
		t.Fatalf("order not cancelled: status=%s version=%d", stored.Status, stored.Version)
	}

	var logs []models.AuditLog
	db.Where("client_id = ?", fx.Client.ID).Where("action IN ?", []models.AuditAction{models.AuditTableReset, models.AuditStatusChanged}).Find(&logs)
	if len(logs) != 2 {
		t.Fatalf("expected reset + status audit rows, got %d", len(logs))
	}

	// Başka işletme sıfırlayamaz
	other := testutil.Seed(t, db, "banyan")
	if _, err := svc.ResetTable(ctx, table.ID, other.Client.ID, nil); apperror.CodeOf(err) != apperror.CodeTableNotFound {
		t.Fatalf("expected TABLE_NOT_FOUND, got %v", err)
	}
}

func TestMarkCleanOnlyFromDirty(t *testing.T) {
	svc, db, _, fx := newTestService(t)
	ctx := context.Background()
	table := fx.TableByCode("T-01")

	if _, err := svc.MarkClean(ctx, fx.Client.ID, table.ID, nil); apperror.CodeOf(err) != apperror.CodeInvalidState {
		t.Fatalf("expected INVALID_STATE for vacant table, got %v", err)
	}

	db.Model(&models.Table{}).Where("id = ?", table.ID).Update("status", models.TableDirty)
	got, err := svc.MarkClean(ctx, fx.Client.ID, table.ID, &fx.Waiter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.TableVacant {
		t.Fatalf("status = %s", got.Status)
	}
}

func TestCreateTableNormalizesAndRejectsDuplicates(t *testing.T) {
	svc, _, _, fx := newTestService(t)
	ctx := context.Background()

	tbl, err := svc.CreateTable(ctx, fx.Client.ID, CreateTableInput{Code: "7", Capacity: 2})
	if err != nil {
		t.Fatal(err)
	}
	if tbl.Code != "T-07" {
		t.Fatalf("code = %s", tbl.Code)
	}

	if _, err := svc.CreateTable(ctx, fx.Client.ID, CreateTableInput{Code: "T-07"}); apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	// Silinen masanın kodu tekrar kullanılabilir
	removed := fx.TableByCode("T-02")
	if err := svc.DeleteTable(ctx, fx.Client.ID, removed.ID); err != nil {
		t.Fatal(err)
	}
	again, err := svc.CreateTable(ctx, fx.Client.ID, CreateTableInput{Code: "2"})
	if err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
	if again.Code != "T-02" || again.ID == removed.ID {
		t.Fatalf("recreated table = %+v", again)
	}
	if _, err := svc.CreateTable(ctx, fx.Client.ID, CreateTableInput{Code: "02"}); apperror.CodeOf(err) != apperror.CodeConflict {
		t.Fatalf("expected CONFLICT for live duplicate, got %v", err)
	}
}
