package audit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"
	"restoran-pos/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func TestWriteInTxCommitsWithParent(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")

	err := db.Transaction(func(tx *gorm.DB) error {
		WriteInTx(tx, Entry{
			ClientID:   fx.Client.ID,
			EntityType: EntityTable,
			EntityID:   1,
			Action:     models.AuditTableReset,
			Metadata:   map[string]any{"from": "ACTIVE"},
		})
		return errors.New("rollback")
	})
	if err == nil {
		t.Fatal("expected rollback error")
	}

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 0 {
		t.Fatalf("audit row must roll back with its transaction, found %d", count)
	}
}

func TestWriteInTxFailureDoesNotAbortParent(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")

	if err := db.Callback().Create().Before("gorm:create").Register("test:fail_audit", func(d *gorm.DB) {
		if d.Statement.Table == "audit_logs" {
			_ = d.AddError(errors.New("audit store down"))
		}
	}); err != nil {
		t.Fatal(err)
	}

	table := fx.TableByCode("T-01")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Table{}).Where("id = ?", table.ID).Update("status", models.TableDirty).Error; err != nil {
			return err
		}
		WriteInTx(tx, Entry{ClientID: fx.Client.ID, EntityType: EntityTable, EntityID: table.ID, Action: models.AuditTableCleaned})
		return nil
	})
	if err != nil {
		t.Fatalf("parent transaction failed: %v", err)
	}

	var stored models.Table
	db.First(&stored, table.ID)
	if stored.Status != models.TableDirty {
		t.Fatalf("parent write lost: %s", stored.Status)
	}
}

func TestRecorderDropsWhenFull(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")
	rec := NewRecorder(db, 2)

	for i := 0; i < 5; i++ {
		rec.Record(Entry{ClientID: fx.Client.ID, EntityType: EntityTable, EntityID: uint(i + 1), Action: models.AuditTableClaimed})
	}
	rec.Flush()

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 queued entries written, got %d", count)
	}
}

func TestRecorderRunDrainsOnShutdown(t *testing.T) {
	db := testutil.NewDB(t)
	fx := testutil.Seed(t, db, "lotus")
	rec := NewRecorder(db, 16)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = rec.Run(ctx) }()

	for i := 0; i < 3; i++ {
		rec.Record(Entry{ClientID: fx.Client.ID, EntityType: EntityOrder, EntityID: 7, Action: models.AuditItemsAdded})
	}
	cancel()

	select {
	case <-waitChan(rec):
	case <-time.After(5 * time.Second):
		t.Fatal("recorder did not stop")
	}

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 3 {
		t.Fatalf("expected 3 entries after drain, got %d", count)
	}
}

func waitChan(rec *Recorder) <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		rec.Wait()
		close(ch)
	}()
	return ch
}

func TestListAuditLogsIsTenantScoped(t *testing.T) {
	db := testutil.NewDB(t)
	a := testutil.Seed(t, db, "lotus")
	b := testutil.Seed(t, db, "banyan")

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(WriteLog(db, Entry{ClientID: a.Client.ID, ActorID: &a.Waiter.ID, EntityType: EntityOrder, EntityID: 1, Action: models.AuditOrderCreated, Metadata: map[string]any{"items": 2}}))
	must(WriteLog(db, Entry{ClientID: a.Client.ID, EntityType: EntityTable, EntityID: 2, Action: models.AuditTableClaimed}))
	must(WriteLog(db, Entry{ClientID: b.Client.ID, EntityType: EntityOrder, EntityID: 1, Action: models.AuditOrderCreated}))

	app := fiber.New()
	app.Get("/api/audit-logs", func(c *fiber.Ctx) error {
		client := a.Client
		c.Locals(tenant.CtxClientKey, &client)
		return c.Next()
	}, ListAuditLogsHandler(db))

	resp, err := app.Test(httptest.NewRequest("GET", "/api/audit-logs?entity_type=order", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)

	var logs []AuditLogResponse
	if err := json.Unmarshal(body, &logs); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log for tenant a, got %d", len(logs))
	}
	if logs[0].ActorName != "Waiter" || string(logs[0].Metadata) != `{"items":2}` {
		t.Fatalf("unexpected log %+v", logs[0])
	}
}
