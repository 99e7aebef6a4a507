package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func TestAuthRequired(t *testing.T) {
	secret := "secret"
	token, err := utils.GenerateToken("8a4c0b9e-2f3d-4b51-8f7e-1c2d3e4f5a6b", "counselor", secret)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	app := fiber.New()
	app.Get("/me", AuthRequired(secret), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		role, _ := c.Locals("role").(string)
		return c.SendString(userID + "|" + role)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", header: "", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Token " + token, status: http.StatusUnauthorized},
		{name: "bad token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer " + token, status: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if tc.status == http.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != "8a4c0b9e-2f3d-4b51-8f7e-1c2d3e4f5a6b|counselor" {
					t.Fatalf("unexpected locals %q", body)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	secret := "secret"
	app := fiber.New()
	app.Put("/appointments/:id/status", AuthRequired(secret), RequireRole("counselor"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	tests := []struct {
		role   string
		status int
	}{
		{role: "counselor", status: http.StatusNoContent},
		{role: "user", status: http.StatusForbidden},
		{role: "", status: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run("role "+tc.role, func(t *testing.T) {
			token, err := utils.GenerateToken("8a4c0b9e-2f3d-4b51-8f7e-1c2d3e4f5a6b", tc.role, secret)
			if err != nil {
				t.Fatalf("GenerateToken: %v", err)
			}
			req := httptest.NewRequest(http.MethodPut, "/appointments/a1/status", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}
