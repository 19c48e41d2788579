package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restoran-pos/internal/audit"
	"restoran-pos/internal/config"
	"restoran-pos/internal/database"
	"restoran-pos/internal/events"
	"restoran-pos/internal/logger"
	"restoran-pos/internal/orders"
	"restoran-pos/internal/payments"
	"restoran-pos/internal/ratelimit"
	"restoran-pos/internal/server"
	"restoran-pos/internal/tables"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.Env); err != nil {
		log.Fatalf("logger başlatılamadı: %v", err)
	}
	lg := logger.L()
	defer func() { _ = lg.Sync() }()

	db, err := database.Init(cfg)
	if err != nil {
		lg.Fatal("veritabanı hatası", zap.Error(err))
	}

	bus := newBus(cfg)

	// Audit kuyruğu HTTP kapandıktan sonra boşaltılır
	recCtx, stopRecorder := context.WithCancel(context.Background())
	rec := audit.NewRecorder(db, cfg.AuditQueueSize)
	go func() { _ = rec.Run(recCtx) }()

	tableSvc := tables.NewService(db, rec, bus, cfg.GhostTimeout)

	app := server.NewApp(server.Deps{
		DB:          db,
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOriginList(),
		Bus:         bus,
		Tables:      tableSvc,
		Orders:      orders.NewService(db, bus),
		Payments:    payments.NewService(db, bus),
		ClaimLimit:  ratelimit.NewMemoryStore(cfg.ClaimRateLimit, cfg.ClaimRateBurst, 3*time.Minute),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Sunucu başlatılıyor", zap.String("port", cfg.HTTPPort), zap.String("event_bus", cfg.EventBus))
		return app.Listen(":" + cfg.HTTPPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("Kapatma sinyali alındı")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		lg.Error("sunucu hatası", zap.Error(err))
	}

	tableSvc.Wait()
	stopRecorder()
	rec.Wait()
	if err := bus.Close(); err != nil {
		lg.Warn("event bus kapatılamadı", zap.Error(err))
	}
	lg.Info("Sunucu kapandı")
}

func newBus(cfg *config.Config) events.Bus {
	switch cfg.EventBus {
	case "redis":
		return events.NewRedisBus(cfg.RedisAddr)
	case "kafka":
		return events.NewKafkaBus(cfg.KafkaBrokers, cfg.KafkaTopic)
	default:
		return events.NewMemoryBus()
	}
}
