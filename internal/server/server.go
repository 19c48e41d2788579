// Package server fiber uygulamasını ve route'ları kurar.
package server

import (
	"strings"
	"time"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/audit"
	"restoran-pos/internal/auth"
	"restoran-pos/internal/events"
	"restoran-pos/internal/logger"
	"restoran-pos/internal/menu"
	"restoran-pos/internal/metrics"
	"restoran-pos/internal/models"
	"restoran-pos/internal/orders"
	"restoran-pos/internal/payments"
	"restoran-pos/internal/ratelimit"
	"restoran-pos/internal/tables"
	"restoran-pos/internal/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

type Deps struct {
	DB          *gorm.DB
	JWTSecret   string
	CORSOrigins []string
	Bus         events.Bus
	Tables      *tables.Service
	Orders      *orders.Service
	Payments    *payments.Service
	ClaimLimit  *ratelimit.MemoryStore
}

func NewApp(d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: apperror.FiberErrorHandler,
		ReadTimeout:  15 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(d.CORSOrigins, ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Tenant-Slug, X-Request-ID",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowCredentials: false,
	}))
	app.Use(logger.RequestID())
	app.Use(logger.Middleware())
	app.Use(metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.UserContext())
		}
		if err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "down", "error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "ok", "time": time.Now().Format(time.RFC3339)})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	resolver := tenant.NewResolver(d.DB)
	authH := auth.NewHandler(d.DB, resolver, d.JWTSecret)
	menuH := menu.NewHandler(d.DB)
	tablesH := tables.NewHandler(d.Tables)
	ordersH := orders.NewHandler(d.Orders)
	paymentsH := payments.NewHandler(d.Payments)

	// Müşteri istekleri slug ile çözülür; personel token'ı varsa aktör olarak eklenir
	customer := []fiber.Handler{auth.OptionalJWT(d.JWTSecret), tenant.Middleware(resolver)}
	staff := []fiber.Handler{auth.JWTMiddleware(d.JWTSecret), tenant.Middleware(resolver)}

	role := func(roles ...models.StaffRole) []fiber.Handler {
		return chain(staff, auth.RequireRole(roles...))
	}
	anyStaff := role(models.RoleManager, models.RoleWaiter, models.RoleCashier, models.RoleKitchen)
	managers := role(models.RoleManager)
	floor := role(models.RoleManager, models.RoleWaiter)
	kitchen := role(models.RoleManager, models.RoleWaiter, models.RoleKitchen)
	cashiers := role(models.RoleManager, models.RoleCashier)

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", authH.Login())
	api.Post("/auth/bootstrap-manager", authH.BootstrapManager())
	api.Get("/auth/me", chain(staff, authH.Me())...)
	api.Post("/staff", chain(managers, authH.CreateStaff())...)

	// Masalar
	api.Post("/tables/claim", chain(customer, ratelimit.Middleware(d.ClaimLimit), tablesH.Claim())...)
	api.Get("/tables", chain(anyStaff, tablesH.List())...)
	api.Post("/tables", chain(managers, tablesH.Create())...)
	api.Get("/tables/:id", chain(anyStaff, tablesH.Get())...)
	api.Delete("/tables/:id", chain(managers, tablesH.Delete())...)
	api.Post("/tables/:id/reset", chain(managers, tablesH.Reset())...)
	api.Post("/tables/:id/clean", chain(floor, tablesH.Clean())...)
	api.Patch("/tables/:id/waiter", chain(managers, tablesH.AssignWaiter())...)

	// Siparişler ("active" :id'den önce)
	api.Get("/orders/active", chain(kitchen, ordersH.ListActive())...)
	api.Post("/orders", chain(customer, ordersH.Place())...)
	api.Get("/orders/:id", chain(customer, ordersH.Get())...)
	api.Post("/orders/:id/items", chain(customer, ordersH.AddItems())...)
	api.Post("/orders/:id/request-bill", chain(customer, ordersH.RequestBill())...)
	api.Delete("/orders/:id/items/:itemId", chain(floor, ordersH.CancelItem())...)
	api.Patch("/orders/:id/status", chain(anyStaff, ordersH.UpdateStatus())...)
	api.Patch("/orders/:id/items/:itemId/status", chain(kitchen, ordersH.UpdateItemStatus())...)
	api.Post("/orders/:id/discount", chain(managers, ordersH.ApplyDiscount())...)
	api.Post("/orders/:id/pay", chain(cashiers, paymentsH.Settle())...)

	// Menü
	api.Get("/menu-items", chain(customer, menuH.List())...)
	api.Post("/menu-items", chain(managers, menuH.Create())...)
	api.Patch("/menu-items/:id/availability", chain(managers, menuH.SetAvailability())...)

	// Audit ve canlı akış
	api.Get("/audit-logs", chain(managers, audit.ListAuditLogsHandler(d.DB))...)
	api.Get("/live", chain(customer, events.StreamHandler(d.Bus, d.DB))...)

	return app
}

// chain middleware listesini kopyalayıp handler'ları sona ekler
func chain(mw []fiber.Handler, hs ...fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+len(hs))
	out = append(out, mw...)
	return append(out, hs...)
}
