package logger

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	CtxLoggerKey    = "logger"
	CtxRequestIDKey = "request_id"
)

var log = zap.NewNop()

// Init global logger'ı kurar. production dışında renkli konsol çıktısı kullanılır.
func Init(level, env string) error {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build(zap.Fields(
		zap.String("service", "restoran-pos"),
		zap.String("environment", env),
	))
	if err != nil {
		return err
	}

	log = l
	zap.ReplaceGlobals(l)
	return nil
}

func L() *zap.Logger {
	return log
}

// FromCtx istek bazlı logger'ı döner, yoksa global logger
func FromCtx(c *fiber.Ctx) *zap.Logger {
	if l, ok := c.Locals(CtxLoggerKey).(*zap.Logger); ok {
		return l
	}
	return log
}

// Middleware her isteği tek satırda loglar. requestid middleware'inden sonra takılmalı.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqLog := log
		if rid, ok := c.Locals(CtxRequestIDKey).(string); ok && rid != "" {
			reqLog = reqLog.With(zap.String("request_id", rid))
		}
		c.Locals(CtxLoggerKey, reqLog)

		err := c.Next()

		status := c.Response().StatusCode()
		switch e := err.(type) {
		case *fiber.Error:
			status = e.Code
		case interface{ HTTPStatus() int }:
			status = e.HTTPStatus()
		}

		reqLog.Info("HTTP Request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.IP()),
		)
		return err
	}
}
