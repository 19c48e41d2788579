// Package testutil testler için SQLite üzerinde gerçek gorm şeması ve örnek veri kurar.
package testutil

import (
	"fmt"
	"testing"

	"restoran-pos/internal/database"
	"restoran-pos/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB her test için izole, bellek içi bir veritabanı açar.
// Tek bağlantı ile çalışır; eşzamanlı testlerde ifadeler sıraya girer ama
// okuma ile koşullu yazma arasındaki yarış yine oluşur.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("sqlite açılamadı: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB alınamadı: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migration: %v", err)
	}
	return db
}

type Fixture struct {
	Client  models.Client
	Waiter  models.Staff
	Cashier models.Staff
	Manager models.Staff
	Tables  []models.Table
	Menu    []models.MenuItem
}

// Seed bir işletme, üç masa (T-01, T-02, T-05), personel ve menü oluşturur.
// GST ve servis ücreti %5.
func Seed(t testing.TB, db *gorm.DB, slug string) *Fixture {
	t.Helper()

	f := &Fixture{
		Client: models.Client{
			Slug:              slug,
			Name:              "Hotel " + slug,
			Plan:              models.PlanPro,
			Status:            models.ClientActive,
			GSTRate:           decimal.NewFromInt(5),
			ServiceChargeRate: decimal.NewFromInt(5),
		},
	}
	must(t, db.Create(&f.Client).Error)

	f.Manager = models.Staff{ClientID: f.Client.ID, Name: "Manager", Email: "manager@" + slug, PasswordHash: "x", Role: models.RoleManager}
	f.Waiter = models.Staff{ClientID: f.Client.ID, Name: "Waiter", Email: "waiter@" + slug, PasswordHash: "x", Role: models.RoleWaiter}
	f.Cashier = models.Staff{ClientID: f.Client.ID, Name: "Cashier", Email: "cashier@" + slug, PasswordHash: "x", Role: models.RoleCashier}
	must(t, db.Create(&f.Manager).Error)
	must(t, db.Create(&f.Waiter).Error)
	must(t, db.Create(&f.Cashier).Error)

	for _, code := range []string{"T-01", "T-02", "T-05"} {
		tbl := models.Table{ClientID: f.Client.ID, Code: code, Capacity: 4, Status: models.TableVacant}
		must(t, db.Create(&tbl).Error)
		f.Tables = append(f.Tables, tbl)
	}

	for _, m := range []struct {
		name  string
		price int64
	}{
		{"Paneer Tikka", 250},
		{"Dal Makhani", 300},
		{"Masala Chai", 50},
	} {
		item := models.MenuItem{ClientID: f.Client.ID, Name: m.name, Price: decimal.NewFromInt(m.price), Available: true}
		must(t, db.Create(&item).Error)
		f.Menu = append(f.Menu, item)
	}

	return f
}

// TableByCode fixture içindeki masayı bulur
func (f *Fixture) TableByCode(code string) models.Table {
	for _, t := range f.Tables {
		if t.Code == code {
			return t
		}
	}
	panic("fixture table not found: " + code)
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
}
