package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"restoran-pos/internal/apperror"
	"restoran-pos/internal/models"
	"restoran-pos/internal/tenant"
	"restoran-pos/internal/testutil"

	"github.com/gofiber/fiber/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newApp(t *testing.T) (*fiber.App, *testutil.Fixture) {
	t.Helper()
	db := testutil.NewDB(t)
	f := testutil.Seed(t, db, "grand")
	// Seed'in personelini sil, bootstrap'ı test edeceğiz
	db.Where("client_id = ?", f.Client.ID).Delete(&models.Staff{})

	resolver := tenant.NewResolver(db)
	h := NewHandler(db, resolver, testSecret)

	app := fiber.New(fiber.Config{ErrorHandler: apperror.FiberErrorHandler})
	app.Post("/api/auth/login", h.Login())
	app.Post("/api/auth/bootstrap-manager", h.BootstrapManager())

	staff := app.Group("/api", JWTMiddleware(testSecret), tenant.Middleware(resolver))
	staff.Get("/auth/me", h.Me())
	staff.Post("/staff", RequireRole(models.RoleManager), h.CreateStaff())
	return app, f
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestBootstrapLoginAndCreateStaff(t *testing.T) {
	app, _ := newApp(t)

	resp, _ := doJSON(t, app, "POST", "/api/auth/bootstrap-manager", "", BootstrapManagerRequest{
		Tenant: "grand", Name: "Ayşe", Email: "Ayse@Grand.test", Password: "s3cret",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("bootstrap status = %d", resp.StatusCode)
	}

	resp, body := doJSON(t, app, "POST", "/api/auth/bootstrap-manager", "", BootstrapManagerRequest{
		Tenant: "grand", Name: "Ikinci", Email: "x@grand.test", Password: "pw",
	})
	if resp.StatusCode != fiber.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("second bootstrap = %d %v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, app, "POST", "/api/auth/login", "", LoginRequest{Tenant: "grand", Email: "ayse@grand.test", Password: "wrong"})
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bad password status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, app, "POST", "/api/auth/login", "", LoginRequest{Tenant: "grand", Email: "ayse@grand.test", Password: "s3cret"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login status = %d %v", resp.StatusCode, body)
	}
	managerToken, _ := body["token"].(string)

	resp, _ = doJSON(t, app, "GET", "/api/auth/me", managerToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, "POST", "/api/staff", managerToken, CreateStaffRequest{
		Name: "Ravi", Email: "ravi@grand.test", Password: "pw", Role: models.RoleWaiter,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create staff status = %d", resp.StatusCode)
	}

	_, body = doJSON(t, app, "POST", "/api/auth/login", "", LoginRequest{Tenant: "grand", Email: "ravi@grand.test", Password: "pw"})
	waiterToken, _ := body["token"].(string)

	resp, body = doJSON(t, app, "POST", "/api/staff", waiterToken, CreateStaffRequest{
		Name: "X", Email: "x@grand.test", Password: "pw", Role: models.RoleWaiter,
	})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("waiter creating staff = %d %v", resp.StatusCode, body)
	}
}

func TestJWTMiddlewareRejectsMissingToken(t *testing.T) {
	app, _ := newApp(t)
	resp, body := doJSON(t, app, "GET", "/api/auth/me", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized || body["code"] != "AUTH_REQUIRED" {
		t.Fatalf("status = %d body = %v", resp.StatusCode, body)
	}
}
