package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestCodeOfWrapped(t *testing.T) {
	err := fmt.Errorf("settle: %w", ErrAlreadyPaid)
	if CodeOf(err) != CodeAlreadyPaid {
		t.Fatalf("CodeOf = %s", CodeOf(err))
	}
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatal("errors.Is should match on code")
	}
	if errors.Is(err, ErrInvalidState) {
		t.Fatal("different codes must not match")
	}
	if CodeOf(errors.New("boom")) != CodeInternal {
		t.Fatal("plain errors map to INTERNAL")
	}
}

func TestFiberErrorHandlerPreservesCode(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: FiberErrorHandler})
	app.Get("/race", func(c *fiber.Ctx) error { return ErrRaceCondition })
	app.Get("/fiber", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusTeapot, "çay") })
	app.Get("/boom", func(c *fiber.Ctx) error { return errors.New("db down") })

	cases := []struct {
		path   string
		status int
		code   string
	}{
		{"/race", fiber.StatusConflict, "RACE_CONDITION"},
		{"/fiber", fiber.StatusTeapot, ""},
		{"/boom", fiber.StatusInternalServerError, "INTERNAL"},
	}

	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest("GET", tc.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tc.status {
			t.Fatalf("%s: status = %d", tc.path, resp.StatusCode)
		}
		body, _ := io.ReadAll(resp.Body)
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("%s: %v", tc.path, err)
		}
		code, _ := got["code"].(string)
		if code != tc.code {
			t.Fatalf("%s: code = %q", tc.path, code)
		}
	}
}
