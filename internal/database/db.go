package database

import (
	"fmt"

	"restoran-pos/internal/config"
	"restoran-pos/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func Init(cfg *config.Config) (*gorm.DB, error) {
	logLevel := logger.Warn
	if cfg.Env != "production" && cfg.LogLevel == "debug" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DatabaseDSN,
	}), &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("veritabanına bağlanılamadı: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql.DB alınamadı: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	zap.L().Info("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
	return db, nil
}

// Migrate şemayı günceller. Testler aynı fonksiyonu SQLite üzerinde çalıştırır.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Client{},
		&models.Staff{},
		&models.MenuItem{},
		&models.Table{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.AuditLog{},
	)
	if err != nil {
		return fmt.Errorf("AutoMigrate hatası: %w", err)
	}

	// Bir masada aynı anda tek açık sipariş. Asıl koruma tables.active_order_id
	// üzerindeki koşullu update, bu index son savunma hattı.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_one_open_per_table
		ON orders (table_id)
		WHERE status NOT IN ('CLOSED', 'CANCELLED')
	`).Error; err != nil {
		return fmt.Errorf("açık sipariş index'i oluşturulamadı: %w", err)
	}

	// Silinen masanın kodu yeniden kullanılabilsin; eski tam index varsa kaldırılır
	if db.Migrator().HasIndex(&models.Table{}, "idx_tables_client_code") {
		if err := db.Migrator().DropIndex(&models.Table{}, "idx_tables_client_code"); err != nil {
			return fmt.Errorf("eski masa kodu index'i kaldırılamadı: %w", err)
		}
	}
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_tables_client_code_live
		ON tables (client_id, code)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("masa kodu index'i oluşturulamadı: %w", err)
	}

	return nil
}
