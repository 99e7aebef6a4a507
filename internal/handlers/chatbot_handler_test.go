package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Violeteyes24/MentalHelpMobile2-sub000/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type stubChatbotService struct {
	reply       string
	err         error
	lastMessage string
}

func (s *stubChatbotService) Reply(_ context.Context, _ uuid.UUID, message string) (string, error) {
	s.lastMessage = message
	return s.reply, s.err
}

func TestChatbotReply(t *testing.T) {
	service := &stubChatbotService{reply: "I'm here to listen."}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.NewString())
		return c.Next()
	})
	app.Post("/api/v1/chatbot", NewChatbotHandler(service).Reply)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot", strings.NewReader(`{"message":"I can't sleep"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Reply string `json:"reply"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body.Reply != "I'm here to listen." || service.lastMessage != "I can't sleep" {
		t.Fatalf("unexpected reply %q for %q", body.Reply, service.lastMessage)
	}
}

func TestChatbotReplyRejectsBlankMessage(t *testing.T) {
	service := &stubChatbotService{err: services.ErrInvalidInput}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.NewString())
		return c.Next()
	})
	app.Post("/api/v1/chatbot", NewChatbotHandler(service).Reply)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chatbot", strings.NewReader(`{"message":""}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
